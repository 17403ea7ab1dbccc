package help

import (
	"github.com/a-h/templ"

	sharedhtml "cuttracker/frontend/shared/html"
)

func HelpPage(data PageData) templ.Component {
	parts := []templ.Component{templ.Raw(helpIntro)}
	if data.IsViewer {
		parts = append(parts, templ.Raw(helpViewer))
	}
	if data.IsOperator || data.IsAdmin {
		parts = append(parts, templ.Raw(helpOperator))
	}
	if data.IsAdmin {
		parts = append(parts, templ.Raw(helpAdmin))
	}
	return sharedhtml.SessionPage("Help", parts...)
}

const helpIntro = `<h1>Help</h1>
<h2>Sheet grid</h2>
<p>Each square is one sheet. Clicking a square moves it pending &rarr; cut &rarr; skip &rarr; pending.
The new colour shows straight away; if the server rejects the change the square goes back to the saved value.</p>
<p>Every open screen updates live when anyone changes a sheet, and rechecks the server every few seconds.</p>`

const helpViewer = `<p>Your account is read only. Ask an admin for operator access to mark sheets.</p>`

const helpOperator = `<h2>Recuts</h2>
<p>Use <em>Add sheets</em> with "recut" ticked to log damaged sheets. Recuts get their own row of squares under the material.</p>
<h2>Travelers</h2>
<p>Print the job traveler from the job page. The barcode encodes the job number.</p>`

const helpAdmin = `<h2>Admin</h2>
<p>Users are managed under <a href="/tasker/admin/users">Users</a>. Deleting a job or material removes its sheets and recuts.</p>`
