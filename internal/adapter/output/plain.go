package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/nudge/internal/model"
)

// PlainFormatter formats notifications as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// templateData is passed to custom templates.
type templateData struct {
	Index int
	*model.Notification
	RelativeTime string
	RewardText   string
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) (*PlainFormatter, error) {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err != nil {
			return nil, fmt.Errorf("invalid template: %w", err)
		}
		f.template = tmpl
	}
	return f, nil
}

// Format writes notifications as plain text.
func (f *PlainFormatter) Format(w io.Writer, notifications []model.Notification) error {
	for i := range notifications {
		if err := f.formatNotification(w, i+1, &notifications[i]); err != nil {
			return err
		}
	}
	return nil
}

// formatNotification formats a single notification.
func (f *PlainFormatter) formatNotification(w io.Writer, index int, n *model.Notification) error {
	if f.template != nil {
		data := templateData{
			Index:        index,
			Notification: n,
			RelativeTime: humanize.Time(n.CreatedAt),
			RewardText:   n.Reward.String(),
		}
		if err := f.template.Execute(w, data); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}
	sb.WriteString(fmt.Sprintf("<%s> %s", n.Type, n.Title))
	if f.opts.ShowTime {
		sb.WriteString(fmt.Sprintf(" (%s)", humanize.Time(n.CreatedAt)))
	}
	sb.WriteString("\n")

	if n.Message != "" {
		msg := strings.Join(strings.Fields(n.Message), " ")
		if f.opts.MessageMaxLen > 0 {
			msg = n.MessageTruncated(f.opts.MessageMaxLen)
		}
		sb.WriteString("    " + msg + "\n")
	}
	if reward := n.Reward.String(); reward != "" {
		sb.WriteString("    reward: " + reward + "\n")
	}
	sb.WriteString("    id: " + n.ID + "\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"truncate": func(max int, s string) string {
			if max <= 0 || len(s) <= max {
				return s
			}
			return s[:max]
		},
		"since": func(t time.Time) string {
			return humanize.Time(t)
		},
	}
}
