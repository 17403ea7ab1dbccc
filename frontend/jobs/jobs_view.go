package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"

	sharedhtml "cuttracker/frontend/shared/html"
	"cuttracker/infrastructure/audit"
	"cuttracker/models"
)

var esc = templ.EscapeString[string]

func JobsPage(data PageData) templ.Component {
	return sharedhtml.SessionPage("Jobs",
		templ.Raw(`<h1>Jobs</h1>`),
		sharedhtml.Flash(data.Status, data.ErrorMessage),
		jobsFilter(data.Filter),
		createJobForm(data.CanEdit),
		jobsTable(data.Rows),
		templ.Raw(`<p><a href="/tasker/exports/jobs.csv">Download CSV</a></p>`),
	)
}

func jobsFilter(current string) templ.Component {
	return sharedhtml.Fragment(func(_ context.Context, b *strings.Builder) {
		b.WriteString(`<form method="get" action="/tasker/jobs" class="filters"><select name="filter" onchange="this.form.submit()">`)
		for _, f := range append([]string{"active", "all"}, Statuses...) {
			selected := ""
			if f == current {
				selected = " selected"
			}
			fmt.Fprintf(b, `<option value="%s"%s>%s</option>`, esc(f), selected, esc(statusLabel(f)))
		}
		b.WriteString(`</select></form>`)
	})
}

func createJobForm(canEdit bool) templ.Component {
	if !canEdit {
		return templ.NopComponent
	}
	return templ.Raw(`<form method="post" action="/tasker/jobs" class="card">
<input name="name" placeholder="Job name" required>
<input name="customer" placeholder="Customer" required>
<input name="due_date" type="date">
<textarea name="notes" placeholder="Notes"></textarea>
<button class="btn btn-primary" type="submit">Create job</button>
</form>`)
}

func jobsTable(rows []JobRow) templ.Component {
	return sharedhtml.Fragment(func(_ context.Context, b *strings.Builder) {
		b.WriteString(`<table class="table"><thead><tr><th>#</th><th>Job</th><th>Customer</th><th>Status</th><th>Due</th><th>Cutlists</th><th>Materials</th><th>Sheets</th></tr></thead><tbody>`)
		if len(rows) == 0 {
			b.WriteString(`<tr><td colspan="8">No jobs</td></tr>`)
		}
		for _, row := range rows {
			fmt.Fprintf(b, `<tr><td>%d</td><td><a href="/tasker/jobs/%d">%s</a></td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d/%d (%d%%)</td></tr>`,
				row.ID, row.ID, esc(row.Name), esc(row.Customer), esc(statusLabel(row.Status)), esc(row.DueDate),
				row.CutlistCount, row.MaterialCount, row.CompletedSheets, row.TotalSheets, row.Percent())
		}
		b.WriteString(`</tbody></table>`)
	})
}

func JobDetailPage(data DetailPageData) templ.Component {
	job := data.Job
	grid := []templ.Component{templ.Raw(fmt.Sprintf(`<div id="job" data-job-id="%d" data-can-edit="%t">`, job.ID, data.CanEdit))}
	for _, cl := range job.Cutlists {
		grid = append(grid, cutlistSection(cl))
	}
	grid = append(grid, templ.Raw(`</div>`))

	return sharedhtml.SessionPage(job.Name,
		jobHeader(job),
		sharedhtml.Flash(data.Status, data.ErrorMessage),
		jobActions(job, data.CanEdit, data.IsAdmin),
		templ.Join(grid...),
		activityList(data.Activity),
		templ.Raw(sheetGridScript),
	)
}

func jobHeader(job models.Job) templ.Component {
	return sharedhtml.Fragment(func(_ context.Context, b *strings.Builder) {
		progress := JobProgress(job)
		fmt.Fprintf(b, `<h1>%s</h1><p>%s | %s | %d/%d sheets cut, %d skipped</p>`,
			esc(job.Name), esc(job.Customer), esc(statusLabel(job.Status)), progress.CompletedSheets, progress.TotalSheets, progress.SkippedSheets)
		if job.DueDate != nil {
			fmt.Fprintf(b, `<p>Due %s</p>`, job.DueDate.Format("02/01/2006"))
		}
		if job.Notes != "" {
			fmt.Fprintf(b, `<p class="notes">%s</p>`, esc(job.Notes))
		}
	})
}

func jobActions(job models.Job, canEdit, isAdmin bool) templ.Component {
	return sharedhtml.Fragment(func(_ context.Context, b *strings.Builder) {
		fmt.Fprintf(b, `<p><a class="btn" href="/tasker/jobs/%d/traveler.pdf">Traveler PDF</a> <a class="btn" href="/tasker/exports/jobs/%d.xlsx">Excel</a></p>`, job.ID, job.ID)
		if canEdit {
			fmt.Fprintf(b, `<form method="post" action="/tasker/jobs/%d/status"><select name="status">`, job.ID)
			for _, s := range Statuses {
				selected := ""
				if s == job.Status {
					selected = " selected"
				}
				fmt.Fprintf(b, `<option value="%s"%s>%s</option>`, s, selected, esc(statusLabel(s)))
			}
			b.WriteString(`</select><button class="btn" type="submit">Update status</button></form>`)
		}
		if isAdmin {
			fmt.Fprintf(b, `<form method="post" action="/tasker/jobs/%d/delete" onsubmit="return confirm('Delete this job?')"><button class="btn btn-error" type="submit">Delete job</button></form>`, job.ID)
		}
	})
}

func activityList(entries []audit.Entry) templ.Component {
	if len(entries) == 0 {
		return templ.NopComponent
	}
	return sharedhtml.Fragment(func(_ context.Context, b *strings.Builder) {
		b.WriteString(`<h2>Recent activity</h2><ul class="activity">`)
		for _, e := range entries {
			fmt.Fprintf(b, `<li>%s %s %s</li>`, esc(e.CreatedAt), esc(e.Username), esc(e.Action))
		}
		b.WriteString(`</ul>`)
	})
}

func cutlistSection(cl *models.Cutlist) templ.Component {
	return sharedhtml.Fragment(func(_ context.Context, b *strings.Builder) {
		fmt.Fprintf(b, `<section class="cutlist" data-cutlist-id="%d"><h2>%s</h2>`, cl.ID, esc(cl.Name))
		for _, m := range cl.Materials {
			fmt.Fprintf(b, `<div class="material" data-material-id="%d"><h3>%s %s %s <small>%d/%d</small></h3><div class="sheets">`,
				m.ID, esc(m.Color), esc(m.Thickness), esc(m.SheetSize), m.CompletedSheets, m.TotalSheets)
			writeSheetButtons(b, "material", m.ID, m.SheetStatuses)
			b.WriteString(`</div>`)
			for _, r := range m.Recuts {
				fmt.Fprintf(b, `<div class="recut" data-recut-id="%d"><h4>Recut x%d %s</h4><div class="sheets">`, r.ID, r.Quantity, esc(r.Reason))
				writeSheetButtons(b, "recut", r.ID, r.SheetStatuses)
				b.WriteString(`</div></div>`)
			}
			b.WriteString(`</div>`)
		}
		b.WriteString(`</section>`)
	})
}

func writeSheetButtons(b *strings.Builder, kind string, id int64, statuses models.SheetStatuses) {
	for i, s := range statuses {
		fmt.Fprintf(b, `<button type="button" class="sheet sheet-%s" data-kind="%s" data-id="%d" data-index="%d" data-status="%s">%d</button>`,
			s, kind, id, i, s, i+1)
	}
}

func statusLabel(status string) string {
	switch status {
	case StatusOpen:
		return "Open"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case "active":
		return "Active"
	case "all":
		return "All"
	default:
		return status
	}
}

// sheetGridScript cycles a sheet on click and shows it immediately. A failed
// request repaints the cell from a fresh server read, falling back to the last
// value the server confirmed. Broadcasts repaint cells or reload the page on
// structural changes; the socket reconnects after a drop, and job detail (5s)
// and recut lists (3s) are polled to catch missed broadcasts. Cells with a
// request in flight are never repainted by a refresh.
const sheetGridScript = `<script>
(function () {
  var root = document.getElementById("job");
  if (!root) return;
  var jobID = Number(root.dataset.jobId);
  var next = { pending: "cut", cut: "skip", skip: "pending" };
  var inflight = {};
  function csrf() {
    var m = document.cookie.match(/(?:^|; )X-CSRF-Token=([^;]*)/);
    return m ? decodeURIComponent(m[1]) : "";
  }
  function key(kind, id, index) { return kind + ":" + id + ":" + index; }
  function cell(kind, id, index) {
    return root.querySelector('button.sheet[data-kind="' + kind + '"][data-id="' + id + '"][data-index="' + index + '"]');
  }
  function paint(el, status) {
    el.className = "sheet sheet-" + status;
    el.dataset.status = status;
  }
  function settle(kind, id, index, status) {
    var el = cell(kind, id, index);
    if (!el) return false;
    el.dataset.confirmed = status;
    if (!inflight[key(kind, id, index)]) paint(el, status);
    return true;
  }
  function applyRow(kind, id, statuses) {
    var rendered = root.querySelectorAll('button.sheet[data-kind="' + kind + '"][data-id="' + id + '"]').length;
    if (rendered !== statuses.length) return false;
    for (var i = 0; i < statuses.length; i++) settle(kind, id, i, statuses[i]);
    return true;
  }
  function getJSON(url) {
    return fetch(url, { headers: { Accept: "application/json" } }).then(function (res) {
      if (!res.ok) throw new Error("status " + res.status);
      return res.json();
    });
  }
  function refreshJob() {
    return getJSON("/tasker/api/jobs/" + jobID).then(function (body) {
      var ok = true;
      (body.job.cutlists || []).forEach(function (cl) {
        (cl.materials || []).forEach(function (m) {
          ok = applyRow("material", m.id, m.sheetStatuses) && ok;
          (m.recuts || []).forEach(function (r) { ok = applyRow("recut", r.id, r.sheetStatuses) && ok; });
        });
      });
      if (!ok) location.reload();
    });
  }
  function refreshRecuts() {
    var seen = {};
    root.querySelectorAll('button.sheet[data-kind="material"]').forEach(function (el) { seen[el.dataset.id] = true; });
    Object.keys(seen).forEach(function (materialID) {
      getJSON("/tasker/api/materials/" + materialID + "/recuts").then(function (body) {
        var ok = true;
        (body.recuts || []).forEach(function (r) { ok = applyRow("recut", r.id, r.sheetStatuses) && ok; });
        if (!ok) location.reload();
      }).catch(function () {});
    });
  }
  if (root.dataset.canEdit === "true") {
    root.addEventListener("click", function (ev) {
      var el = ev.target.closest("button.sheet");
      if (!el) return;
      var kind = el.dataset.kind, id = el.dataset.id, index = el.dataset.index;
      var k = key(kind, id, index);
      if (!el.dataset.confirmed) el.dataset.confirmed = el.dataset.status;
      var status = next[el.dataset.status] || "cut";
      paint(el, status);
      inflight[k] = (inflight[k] || 0) + 1;
      var base = kind === "recut" ? "/tasker/api/recuts/" : "/tasker/api/materials/";
      fetch(base + id + "/sheets/" + index + "/status", {
        method: "POST",
        headers: { "Content-Type": "application/json", "X-CSRF-Token": csrf() },
        body: JSON.stringify({ status: status })
      }).then(function (res) {
        if (!res.ok) throw new Error("status " + res.status);
        el.dataset.confirmed = status;
        inflight[k]--;
      }).catch(function () {
        inflight[k]--;
        refreshJob().catch(function () {}).then(function () {
          if (!inflight[k]) paint(el, el.dataset.confirmed);
        });
        alert("Could not update sheet. Please try again.");
      });
    });
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/tasker/ws");
    ws.onmessage = function (msg) {
      try {
        var ev = JSON.parse(msg.data);
        if (!ev.payload || ev.payload.jobId !== jobID) return;
        if (ev.type === "sheet_status_updated") {
          settle("material", ev.payload.materialId, ev.payload.sheetIndex, ev.payload.status);
        } else if (ev.type === "recut_sheet_status_updated") {
          settle("recut", ev.payload.recutId, ev.payload.sheetIndex, ev.payload.status);
        } else {
          location.reload();
        }
      } catch (e) {}
    };
    ws.onclose = function () { setTimeout(connect, 2000); };
  }
  connect();
  setInterval(function () { refreshJob().catch(function () {}); }, 5000);
  setInterval(refreshRecuts, 3000);
})();
</script>`
