// Package shell holds the navigation pieces around the profile screen: the
// menu routes and the logout confirmation.
package shell

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/message"

	"github.com/catalogo-app/perfil/internal/i18n"
)

const (
	DashboardPath  = "/dashboard"
	CategoriesPath = "/categorias"
	ProfilePath    = "/perfil"
	LoginPath      = "/login"
)

// Route is one entry of the side menu.
type Route struct {
	Path  string `json:"path,omitempty"`
	Label string `json:"label"`
}

var menu = []Route{
	{Path: DashboardPath, Label: i18n.MenuDashboard},
	{Path: CategoriesPath, Label: i18n.MenuCategories},
	{Path: ProfilePath, Label: i18n.MenuProfile},
}

// Menu returns the side menu with its labels translated. The logout entry
// has no path; it opens the logout dialog.
func Menu(p *message.Printer) []Route {
	routes := make([]Route, 0, len(menu)+1)
	for _, r := range menu {
		routes = append(routes, Route{Path: r.Path, Label: p.Sprintf(r.Label)})
	}
	return append(routes, Route{Label: p.Sprintf(i18n.MenuLogout)})
}

// Navigator tracks the current route and tells subscribers when the user
// has logged out.
type Navigator struct {
	mu        sync.Mutex
	current   string
	loggedOut chan struct{}
}

func NewNavigator(start string) *Navigator {
	if start == "" {
		start = ProfilePath
	}
	return &Navigator{
		current:   start,
		loggedOut: make(chan struct{}),
	}
}

func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Navigate moves to path, which must be absolute.
func (n *Navigator) Navigate(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = path
	return true
}

// LoggedOut returns a channel that is closed by the next logout.
func (n *Navigator) LoggedOut() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loggedOut
}

// Logout sends the user to the login page and signals every LoggedOut
// channel handed out so far.
func (n *Navigator) Logout(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = LoginPath
	close(n.loggedOut)
	n.loggedOut = make(chan struct{})
	logrus.WithContext(ctx).Info("User logged out")
	return nil
}
