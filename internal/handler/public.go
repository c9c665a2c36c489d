package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/validate"
)

// Index shows the landing page with the profile request form.
// GET /
func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, "index.html", view{Presets: model.StickerPresets})
}

// SubmitRequest queues a profile request for moderation.
// POST /request
func (p *Pages) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		p.renderError(w, r, http.StatusBadRequest, "Ungültiges Formular")
		return
	}
	if _, err := p.cfg.Service.SubmitRequest(r.Context(), profileInput(r.PostForm)); err != nil {
		if errors.Is(err, validate.ErrInvalid) {
			p.render(w, r, http.StatusBadRequest, "index.html", view{
				Problems: problems(err),
				Form:     r.PostForm,
				Presets:  model.StickerPresets,
			})
			return
		}
		p.renderServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, "/?done=requested", http.StatusSeeOther)
}

// Profile shows the anonymous message form of a profile.
// GET /{uuid}
func (p *Pages) Profile(w http.ResponseWriter, r *http.Request) {
	prof, ok := p.cfg.Profiles.Get(chi.URLParam(r, "uuid"))
	if !ok {
		p.NotFound(w, r)
		return
	}
	p.render(w, r, http.StatusOK, "profile.html", view{Title: prof.Name, Profile: &prof})
}

// SendMessage relays an anonymous message to the profile owner.
// POST /{uuid}/message
func (p *Pages) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	if err := parseForm(w, r); err != nil {
		p.renderError(w, r, http.StatusBadRequest, "Ungültiges Formular")
		return
	}

	err := p.cfg.Relay.Send(r.Context(), id, validate.MessageInput{
		Content:    r.PostForm.Get("content"),
		SenderName: r.PostForm.Get("senderName"),
	})
	switch {
	case err == nil:
		http.Redirect(w, r, "/"+id+"?done=sent", http.StatusSeeOther)
	case errors.Is(err, service.ErrProfileNotFound):
		p.NotFound(w, r)
	case errors.Is(err, validate.ErrInvalid), errors.Is(err, service.ErrDelivery):
		prof, ok := p.cfg.Profiles.Get(id)
		if !ok {
			p.NotFound(w, r)
			return
		}
		code, msg := classifyError(err)
		v := view{Title: prof.Name, Profile: &prof, Form: r.PostForm, Problems: problems(err)}
		if v.Problems == nil {
			v.Error = msg
		}
		p.render(w, r, code, "profile.html", v)
	default:
		p.renderServiceError(w, r, err)
	}
}

// QRCode serves the QR code of a profile as PNG.
// GET /qr/{uuid}
func (p *Pages) QRCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	if !p.cfg.Profiles.Has(id) {
		p.NotFound(w, r)
		return
	}
	data, err := p.cfg.Stickers.QRCode(id)
	if err != nil {
		p.renderServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}
