package dashboard

import "fmt"

// View names the pane the dashboard shows.
type View string

const (
	Unset      View = ""
	ListView   View = "render_all"
	CreateView View = "create_new"
)

// ParseView accepts the two selectable panes. Unset cannot be selected.
func ParseView(name string) (View, error) {
	switch v := View(name); v {
	case ListView, CreateView:
		return v, nil
	default:
		return Unset, fmt.Errorf("unknown view %q", name)
	}
}
