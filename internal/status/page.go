package status

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"sketchroom/internal/viewmodel"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;margin-bottom:1.5rem}td,th{padding:.25rem .75rem;border-bottom:1px solid #ddd;text-align:left}
.figures span{display:inline-block;margin-right:2rem}.muted{color:#888}`

// Page renders the status page.
func Page(vm viewmodel.StatusPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw("<!doctype html><html><head><meta charset=\"utf-8\"><meta http-equiv=\"refresh\" content=\"10\">")
		p.raw("<title>").text(vm.Title).raw("</title><style>" + pageStyle + "</style></head><body>")
		p.raw("<h1>").text(vm.Title).raw("</h1>")
		p.raw("<p class=\"muted\">As of ").text(vm.GeneratedAt).raw("</p>")

		p.raw("<p class=\"figures\">")
		figure(p, "Online", vm.Online)
		figure(p, "Games running", vm.ActiveGames)
		figure(p, "Players in games", vm.PlayersInGame)
		figure(p, "Games started", vm.GamesStarted)
		p.raw("</p>")

		p.raw("<h2>Matchmaking</h2><table><tr><th>Mode</th><th>Waiting</th><th>Open lobby</th></tr>")
		for _, q := range vm.Queues {
			p.raw("<tr><td>").text(q.Mode).raw("</td><td>").text(strconv.Itoa(q.Waiting)).raw("</td><td>")
			if q.OpenCode == "" {
				p.raw("<span class=\"muted\">none</span>")
			} else {
				p.raw("<code>").text(q.OpenCode).raw("</code>")
			}
			p.raw("</td></tr>")
		}
		p.raw("</table>")

		p.raw("<h2>Lobbies</h2>")
		if len(vm.Lobbies) == 0 {
			p.raw("<p class=\"muted\">No lobbies.</p>")
		} else {
			p.raw("<table><tr><th>Code</th><th>Mode</th><th>Players</th><th>Status</th></tr>")
			for _, l := range vm.Lobbies {
				code := l.Code
				if code == "" {
					code = "private"
				}
				p.raw("<tr><td><code>").text(code).raw("</code></td><td>").text(l.Mode).
					raw("</td><td>").text(fmt.Sprintf("%d/%d", l.Players, l.MaxPlayers)).
					raw("</td><td>").text(l.Status).raw("</td></tr>")
			}
			p.raw("</table>")
		}

		if len(vm.Leaders) > 0 {
			p.raw("<h2>Leaderboard</h2><table><tr><th>#</th><th>Player</th><th>Country</th><th>Points</th></tr>")
			for _, e := range vm.Leaders {
				p.raw("<tr><td>").text(strconv.Itoa(e.Rank)).raw("</td><td>").text(e.Name).
					raw("</td><td>").text(e.Country).raw("</td><td>").text(strconv.FormatInt(e.Points, 10)).raw("</td></tr>")
			}
			p.raw("</table>")
		}
		p.raw("</body></html>")
		return p.err
	})
}

func figure(p *printer, label string, n int) {
	p.raw("<span>").text(label).raw(": <strong>").text(strconv.Itoa(n)).raw("</strong></span>")
}

// printer writes until the first error and remembers it.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) *printer {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
	return p
}

func (p *printer) text(s string) *printer {
	return p.raw(templ.EscapeString(s))
}
