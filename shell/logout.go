package shell

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/text/message"

	"github.com/catalogo-app/perfil/internal/i18n"
)

// ErrNotRequested is returned when confirming a logout nobody asked for.
var ErrNotRequested = errors.New("logout has not been requested")

// LogoutDialog asks the user to confirm before logging out. Nothing
// happens until Confirm is called while the dialog is open.
type LogoutDialog struct {
	mu       sync.Mutex
	visible  bool
	onLogout func(ctx context.Context) error
}

func NewLogoutDialog(onLogout func(ctx context.Context) error) *LogoutDialog {
	return &LogoutDialog{onLogout: onLogout}
}

func (d *LogoutDialog) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = true
}

func (d *LogoutDialog) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = false
}

func (d *LogoutDialog) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

// Confirm closes the dialog and then runs the logout handler.
func (d *LogoutDialog) Confirm(ctx context.Context) error {
	d.mu.Lock()
	if !d.visible {
		d.mu.Unlock()
		return ErrNotRequested
	}
	d.visible = false
	d.mu.Unlock()
	if d.onLogout == nil {
		return nil
	}
	return d.onLogout(ctx)
}

type DialogView struct {
	Visible bool   `json:"visible"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Cancel  string `json:"cancel"`
	Confirm string `json:"confirm"`
}

func (d *LogoutDialog) View(p *message.Printer) DialogView {
	return DialogView{
		Visible: d.Visible(),
		Title:   p.Sprintf(i18n.ConfirmLogoutTitle),
		Text:    p.Sprintf(i18n.ConfirmLogoutText),
		Cancel:  p.Sprintf(i18n.Cancel),
		Confirm: p.Sprintf(i18n.Confirm),
	}
}
