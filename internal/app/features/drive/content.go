package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/dalemusser/stratadrive/internal/app/system/jsonutil"
	"github.com/dalemusser/stratadrive/internal/app/system/lifecycle"
	"github.com/dalemusser/stratadrive/internal/app/system/timeouts"
	"github.com/dalemusser/stratadrive/internal/domain"
	"go.uber.org/zap"
)

// multipartSlack covers form boundaries and headers on top of the file
// itself.
const multipartSlack = 64 << 10

// upload streams a multipart upload into the drive. The form carries an
// optional folder_id field followed by a single file part; the folder may
// also be given as ?folder=. The file part is piped straight to the blob
// store, so nothing is buffered on disk.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	folderRaw := r.URL.Query().Get("folder")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartSlack)
	mr, err := r.MultipartReader()
	if err != nil {
		jsonutil.BadRequest(w, "expected a multipart/form-data upload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			jsonutil.BadRequest(w, "no file in upload")
			return
		}
		if err != nil {
			h.uploadError(w, err)
			return
		}

		if part.FileName() == "" {
			if part.FormName() == "folder_id" {
				b, err := io.ReadAll(io.LimitReader(part, 64))
				if err != nil {
					h.uploadError(w, err)
					return
				}
				folderRaw = string(b)
			}
			part.Close()
			continue
		}

		folderID, err := optionalFolder(folderRaw)
		if err != nil {
			jsonutil.BadRequest(w, "invalid folder id")
			return
		}

		f, err := h.engine.CreateFileFromUpload(ctx, id, lifecycle.UploadInput{
			Filename:    part.FileName(),
			FolderID:    folderID,
			ContentType: partContentType(part.Header.Get("Content-Type")),
			Body:        part,
			MaxSize:     h.maxUploadSize,
		})
		part.Close()
		if err != nil {
			h.uploadError(w, err)
			return
		}

		h.logger.Info("file uploaded",
			zap.String("user_id", id.UserID().Hex()),
			zap.String("item", f.Ref().String()),
			zap.Int64("size", f.Size))
		jsonutil.Created(w, f)
		return
	}
}

func (h *Handler) uploadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, domain.ErrTooLarge) {
		h.tooLarge(w)
		return
	}
	jsonutil.Fail(w, err)
}

func (h *Handler) tooLarge(w http.ResponseWriter) {
	jsonutil.Error(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("file too large (max %s)", FormatFileSize(h.maxUploadSize)))
}

// partContentType keeps a client-declared type unless it is the generic
// octet-stream, in which case the engine guesses from the extension.
func partContentType(declared string) string {
	mediaType, params, err := mime.ParseMediaType(declared)
	if err != nil || mediaType == "application/octet-stream" {
		return ""
	}
	return mime.FormatMediaType(mediaType, params)
}

// download streams a file's content. Viewable types are served inline when
// ?inline=1 is given; everything else is an attachment.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := itemRef(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	rc, f, err := h.engine.FetchContent(ctx, id, ref)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	defer rc.Close()

	disposition := "attachment"
	if inline, _ := strconv.ParseBool(r.URL.Query().Get("inline")); inline && IsViewable(f.ContentType) {
		disposition = "inline"
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Content-Disposition", contentDisposition(disposition, f.Name))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream file",
			zap.String("item", ref.String()),
			zap.Error(err))
	}
}

func contentDisposition(disposition, name string) string {
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": name}); v != "" {
		return v
	}
	// Names FormatMediaType cannot encode fall back to a generic one.
	return disposition + `; filename="download"`
}
