package template

import "fmt"

func NotificationTemplate(name, message string) string {
	template := fmt.Sprintf(`
		<html>
        <body>
            <h2>You have a new notification</h2>
            <p>Hi %s,</p>
            <p>%s</p>
            <br>
            <p>Open the app to see the details.</p>
        </body>
        </html>
		`, name, message)
	return template
}
