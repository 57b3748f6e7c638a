package drive

import (
	"context"
	"net/http"

	"github.com/dalemusser/stratadrive/internal/app/system/jsonutil"
	"github.com/dalemusser/stratadrive/internal/app/system/timeouts"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"go.uber.org/zap"
)

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	folderID, err := optionalFolder(r.URL.Query().Get("folder"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid folder id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	listing, err := h.engine.ListActive(ctx, id, folderID, listOptions(r))
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.OK(w, listing)
}

func (h *Handler) starred(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	listing, err := h.engine.ListStarred(ctx, id)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.OK(w, listing)
}

func (h *Handler) trash(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	listing, err := h.engine.ListTrashed(ctx, id)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.OK(w, listing)
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	files, err := h.engine.ListRecent(ctx, id, recentLimit(r))
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.OK(w, map[string]any{"files": files})
}

func (h *Handler) children(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	folderID, ok := folderParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	listing, err := h.engine.ListChildren(ctx, id, folderID)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.OK(w, listing)
}

// path returns the breadcrumb of a folder: its ancestors, root first,
// followed by the folder itself.
func (h *Handler) path(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	folderID, ok := folderParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ancestors, err := h.engine.Ancestors(ctx, id, folderID)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	self, err := h.engine.Get(ctx, id, models.FolderRef(folderID))
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.OK(w, map[string]any{"path": append(ancestors, *self.(*models.Folder))})
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

func (h *Handler) createFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var in createFolderRequest
	if !decode(w, r, &in) {
		return
	}
	parent, err := optionalFolder(in.ParentID)
	if err != nil {
		jsonutil.BadRequest(w, "invalid parent id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	f, err := h.engine.CreateFolder(ctx, id, in.Name, parent)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	h.logger.Info("folder created",
		zap.String("user_id", id.UserID().Hex()),
		zap.String("item", f.Ref().String()))
	jsonutil.Created(w, f)
}

// itemResponse tags an item with its reference so clients can address it.
// itemResponse carries the item with its lifecycle state. TrashRoot is set
// for trashed items that were trashed on their own rather than with a folder.
type itemResponse struct {
	Ref       models.ItemRef   `json:"ref"`
	Kind      models.Kind      `json:"kind"`
	State     models.Lifecycle `json:"state"`
	TrashRoot bool             `json:"trash_root"`
	Item      models.Item      `json:"item"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := itemRef(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	item, err := h.engine.Get(ctx, id, ref)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	st := item.State()
	jsonutil.OK(w, itemResponse{
		Ref:       ref,
		Kind:      ref.Kind,
		State:     st.Lifecycle(),
		TrashRoot: st.IsTrashRoot(),
		Item:      item,
	})
}

type starRequest struct {
	Starred bool `json:"starred"`
}

func (h *Handler) star(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := itemRef(w, r)
	if !ok {
		return
	}
	var in starRequest
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.engine.Star(ctx, id, ref, in.Starred); err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.NoContent(w)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := itemRef(w, r)
	if !ok {
		return
	}
	var in renameRequest
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.engine.Rename(ctx, id, ref, in.Name); err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.NoContent(w)
}

type moveRequest struct {
	ParentID string `json:"parent_id"` // empty moves to the root
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := itemRef(w, r)
	if !ok {
		return
	}
	var in moveRequest
	if !decode(w, r, &in) {
		return
	}
	parent, err := optionalFolder(in.ParentID)
	if err != nil {
		jsonutil.BadRequest(w, "invalid parent id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.engine.Move(ctx, id, ref, parent); err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.NoContent(w)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := itemRef(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.engine.SoftDelete(ctx, id, ref); err != nil {
		jsonutil.Fail(w, err)
		return
	}
	h.logger.Info("item trashed",
		zap.String("user_id", id.UserID().Hex()),
		zap.String("item", ref.String()))
	jsonutil.NoContent(w)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := itemRef(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.engine.Restore(ctx, id, ref); err != nil {
		jsonutil.Fail(w, err)
		return
	}
	h.logger.Info("item restored",
		zap.String("user_id", id.UserID().Hex()),
		zap.String("item", ref.String()))
	jsonutil.NoContent(w)
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := itemRef(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.engine.Purge(ctx, id, ref); err != nil {
		jsonutil.Fail(w, err)
		return
	}
	h.logger.Info("item purged",
		zap.String("user_id", id.UserID().Hex()),
		zap.String("item", ref.String()))
	jsonutil.NoContent(w)
}

func (h *Handler) emptyTrash(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	n, err := h.engine.EmptyTrash(ctx, id)
	if err != nil {
		h.logger.Warn("empty trash incomplete",
			zap.String("user_id", id.UserID().Hex()),
			zap.Int("purged", n),
			zap.Error(err))
		jsonutil.Fail(w, err)
		return
	}
	h.logger.Info("trash emptied",
		zap.String("user_id", id.UserID().Hex()),
		zap.Int("purged", n))
	jsonutil.OK(w, map[string]int{"purged": n})
}
