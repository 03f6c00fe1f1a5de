package inspector

import (
	"context"

	"webprobe/pkg/domain"

	"github.com/google/uuid"
	"github.com/mafredri/cdp/protocol/page"
)

// onDialogOpening 页面弹出 alert/confirm/prompt，同一时刻只保留一个
func (i *Inspector) onDialogOpening(ev *page.JavascriptDialogOpeningReply) {
	d := &domain.DialogState{
		ID:      uuid.New().String(),
		Type:    domain.DialogType(ev.Type),
		Message: ev.Message,
		URL:     ev.URL,
	}
	if ev.DefaultPrompt != nil {
		d.DefaultPrompt = *ev.DefaultPrompt
	}
	i.log.Debug("页面弹出对话框", "type", string(d.Type), "id", d.ID)
	i.update(func(st *domain.PageState) { st.Dialog = d })
}

func (i *Inspector) onDialogClosed() {
	i.update(func(st *domain.PageState) { st.Dialog = nil })
}

// HandleDialog 应答当前对话框，promptText 仅对 prompt 生效
func (i *Inspector) HandleDialog(ctx context.Context, accept bool, promptText *string) error {
	i.mu.RLock()
	pending := i.state.Dialog
	i.mu.RUnlock()
	if pending == nil {
		return domain.ErrNoPendingDialog
	}

	client, _, err := i.attached()
	if err != nil {
		return err
	}

	args := page.NewHandleJavaScriptDialogArgs(accept)
	if promptText != nil && pending.Type == domain.DialogTypePrompt {
		args.SetPromptText(*promptText)
	}
	if err := client.Page.HandleJavaScriptDialog(ctx, args); err != nil {
		return err
	}
	i.onDialogClosed()
	return nil
}
