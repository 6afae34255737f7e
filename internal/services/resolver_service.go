package services

import (
	"context"
	"fmt"
	"notification-service/internal/models"
	"notification-service/internal/repository"
	"sort"
)

// RecipientResolver computes the set of users to notify for a domain event.
// It only reads the domain graph and never mutates it.
type RecipientResolver struct {
	domainRepo repository.DomainRepository
}

// NewRecipientResolver creates a new recipient resolver
func NewRecipientResolver(domainRepo repository.DomainRepository) *RecipientResolver {
	return &RecipientResolver{domainRepo: domainRepo}
}

// Resolve applies the recipient rules as a union, then removes the actor.
// The result is deduplicated and sorted; an empty result is valid and means
// no jobs are enqueued.
func (r *RecipientResolver) Resolve(ctx context.Context, event *models.Event) ([]string, error) {
	recipients := make(map[string]struct{})

	if event.TaskID != nil {
		task, err := r.domainRepo.GetTask(ctx, *event.TaskID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve task recipients: %w", err)
		}

		recipients[task.CreatorID] = struct{}{}

		assignees, err := r.domainRepo.GetTaskAssigneeIDs(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve assignee recipients: %w", err)
		}
		for _, id := range assignees {
			recipients[id] = struct{}{}
		}

		// A standalone task has no project or workspace expansion.
		if task.ProjectID != nil {
			if err := r.expandProject(ctx, *task.ProjectID, recipients); err != nil {
				return nil, err
			}
		}
	} else if event.ProjectID != nil {
		if err := r.expandProject(ctx, *event.ProjectID, recipients); err != nil {
			return nil, err
		}
	}

	if event.Kind == models.KindReply && event.CommentID != nil {
		authorID, err := r.domainRepo.GetCommentAuthorID(ctx, *event.CommentID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve replied comment author: %w", err)
		}
		recipients[authorID] = struct{}{}
	}

	// Explicitly tagged target: the reply mention or the invited user.
	if event.TargetUserID != nil {
		recipients[*event.TargetUserID] = struct{}{}
	}

	// The actor never notifies themselves, regardless of the rules above.
	delete(recipients, event.ActorID)

	result := make([]string, 0, len(recipients))
	for id := range recipients {
		result = append(result, id)
	}
	sort.Strings(result)

	return result, nil
}

// expandProject adds every current project member plus every workspace
// member holding the owner role for the project's workspace. Owners have
// implicit project visibility even without explicit membership.
func (r *RecipientResolver) expandProject(ctx context.Context, projectID string, recipients map[string]struct{}) error {
	project, err := r.domainRepo.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to resolve project: %w", err)
	}

	members, err := r.domainRepo.GetProjectMemberIDs(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve project members: %w", err)
	}
	for _, id := range members {
		recipients[id] = struct{}{}
	}

	owners, err := r.domainRepo.GetWorkspaceOwnerIDs(ctx, project.WorkspaceID)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace owners: %w", err)
	}
	for _, id := range owners {
		recipients[id] = struct{}{}
	}

	return nil
}
