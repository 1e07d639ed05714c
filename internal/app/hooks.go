package app

import (
	"github.com/ayusman/signbridge/internal/mode"
	"github.com/ayusman/signbridge/internal/plugin"
	"github.com/ayusman/signbridge/internal/resource"
	"github.com/ayusman/signbridge/internal/store"
)

// onStable runs on the controller goroutine for every stabilized recognition.
func (a *App) onStable(text string, st mode.State) {
	id := a.recordTranslation(&store.Entry{
		Direction: st.Direction,
		Variant:   st.Variant,
		Source:    store.SourceRecognized,
		Text:      text,
	})
	a.deliver(id, text, st)
}

// onInstalled runs on the controller goroutine when a looked up pose is displayed.
func (a *App) onInstalled(text string, st mode.State, h *resource.Handle) {
	id := a.recordTranslation(&store.Entry{
		Direction:    st.Direction,
		Variant:      st.Variant,
		Source:       store.SourceLookup,
		Text:         text,
		ArtifactSize: h.Size,
	})
	a.deliver(id, text, st)
}

func (a *App) recordTranslation(e *store.Entry) string {
	if a.store == nil {
		return ""
	}
	if err := a.store.History().Record(e); err != nil {
		a.logger.Warn().Err(err).Str("text", e.Text).Msg("failed to record translation")
		return ""
	}
	return e.ID
}

func (a *App) deliver(id, text string, st mode.State) {
	a.sink.Deliver(plugin.Delivery{
		TranslationID: id,
		Text:          text,
		Direction:     st.Direction.String(),
		Variant:       st.Variant.String(),
	})
}

// recordDelivery runs on a sink worker.
func (a *App) recordDelivery(r plugin.Result) {
	if a.store == nil || r.TranslationID == "" {
		return
	}

	d := &store.Delivery{
		TranslationID: r.TranslationID,
		PluginName:    r.Plugin,
		Success:       r.Succeeded(),
	}
	switch {
	case r.Err != nil:
		d.Error = r.Err.Error()
	case r.Response != nil && !r.Response.Success:
		d.Error = r.Response.Error
	}

	if err := a.store.Deliveries().Record(d); err != nil {
		a.logger.Warn().Err(err).Str("plugin", r.Plugin).Msg("failed to record plugin delivery")
	}
}

// watchMode persists direction and variant whenever they change. Caller holds a.mu.
func (a *App) watchMode() {
	if a.store == nil {
		return
	}

	snapshots, unsub := a.ctrl.Subscribe()
	saved := make(chan struct{})
	a.unsub, a.saved = unsub, saved

	go func() {
		defer close(saved)

		last := a.ctrl.Mode()
		for snap := range snapshots {
			st := mode.State{Direction: snap.Direction, Variant: snap.Variant}
			if st == last {
				continue
			}
			if err := a.store.Settings().SaveMode(st.Direction, st.Variant); err != nil {
				a.logger.Warn().Err(err).Msg("failed to save mode")
				continue
			}
			last = st
		}
	}()
}
