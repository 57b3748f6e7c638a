package account

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/stratadrive/internal/app/system/access"
	"github.com/dalemusser/stratadrive/internal/app/system/jsonutil"
	"github.com/dalemusser/stratadrive/internal/app/system/timeouts"
	"github.com/dalemusser/stratadrive/internal/domain"
	"go.uber.org/zap"
)

// pictureField is the multipart field carrying the picture.
const pictureField = "picture"

// uploadPicture reads a multipart form with a single "picture" file part
// and streams it to the picture store.
func (h *Handler) uploadPicture(w http.ResponseWriter, r *http.Request) {
	id, ok := access.IdentityFrom(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, access.MaxPictureSize+maxBodyBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		jsonutil.BadRequest(w, "expected a multipart/form-data upload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			jsonutil.BadRequest(w, "no picture in upload")
			return
		}
		if err != nil {
			pictureError(w, err)
			return
		}
		if part.FormName() != pictureField || part.FileName() == "" {
			part.Close()
			continue
		}

		u, err := h.access.SetPicture(ctx, id, part, part.Header.Get("Content-Type"))
		part.Close()
		if err != nil {
			pictureError(w, err)
			return
		}
		jsonutil.OK(w, u)
		return
	}
}

func pictureError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, domain.ErrTooLarge) {
		jsonutil.Error(w, http.StatusRequestEntityTooLarge, "picture too large")
		return
	}
	jsonutil.Fail(w, err)
}

func (h *Handler) picture(w http.ResponseWriter, r *http.Request) {
	id, ok := access.IdentityFrom(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	rc, contentType, err := h.access.Picture(ctx, id)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream picture",
			zap.String("user_id", id.UserID().Hex()),
			zap.Error(err))
	}
}

func (h *Handler) removePicture(w http.ResponseWriter, r *http.Request) {
	id, ok := access.IdentityFrom(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.access.RemovePicture(ctx, id); err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.NoContent(w)
}
