// Lifecycle and verifier HTTP handlers.
//
// Lifecycle endpoints move one commitment between the active, archived and
// deleted stores and answer 204; the service rejects moves from the wrong
// store with 404 and concurrent moves with 409.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// BulkPurgeRequest names the commitments to remove permanently.
type BulkPurgeRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1,max=500,dive,gt=0"`
}

// BulkPurgeResponse reports how many commitments were removed.
type BulkPurgeResponse struct {
	Purged int64 `json:"purged" example:"3"`
}

// AddVerifierRequest registers an evidence file already stored by the
// caller at Path.
type AddVerifierRequest struct {
	FileName    string `json:"file_name"   binding:"required,max=255" example:"acta.pdf"`
	Path        string `json:"path"        binding:"required,max=1024" example:"verifiers/2025/03/acta.pdf"`
	Description string `json:"description" binding:"max=2000"`
}

// DeleteVerifierResponse returns the storage path so the caller can remove
// the file.
type DeleteVerifierResponse struct {
	Path string `json:"path" example:"verifiers/2025/03/acta.pdf"`
}

type moveFunc func(ctx context.Context, a domain.Actor, id uint) error

func (h *Handlers) move(c *gin.Context, fn moveFunc) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	if err := fn(c.Request.Context(), a, id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// ArchiveCommitment godoc
// @ID          archiveCommitment
// @Summary     Archive a completed commitment
// @Tags        Lifecycle
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Success     204  {string} string "No Content"
// @Failure     403  {object} handlers.ErrorResponse "Not allowed"
// @Failure     404  {object} handlers.ErrorResponse "Not active"
// @Failure     409  {object} handlers.ErrorResponse "Not completed, or concurrent change"
// @Router      /commitments/{id}/archive [post]
func (h *Handlers) ArchiveCommitment(c *gin.Context) { h.move(c, h.lifecycle.Archive) }

// UnarchiveCommitment godoc
// @ID          unarchiveCommitment
// @Summary     Move an archived commitment back to active
// @Tags        Lifecycle
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not archived"
// @Router      /commitments/{id}/unarchive [post]
func (h *Handlers) UnarchiveCommitment(c *gin.Context) { h.move(c, h.lifecycle.Unarchive) }

// DeleteCommitment godoc
// @ID          deleteCommitment
// @Summary     Soft-delete a commitment
// @Tags        Lifecycle
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not active"
// @Router      /commitments/{id} [delete]
func (h *Handlers) DeleteCommitment(c *gin.Context) { h.move(c, h.lifecycle.SoftDelete) }

// RestoreCommitment godoc
// @ID          restoreCommitment
// @Summary     Restore a deleted commitment
// @Tags        Lifecycle
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not deleted"
// @Router      /commitments/{id}/restore [post]
func (h *Handlers) RestoreCommitment(c *gin.Context) { h.move(c, h.lifecycle.Restore) }

// PurgeCommitment godoc
// @ID          purgeCommitment
// @Summary     Permanently remove a deleted commitment
// @Description Service director only.
// @Tags        Lifecycle
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Success     204  {string} string "No Content"
// @Failure     403  {object} handlers.ErrorResponse "Not the service director"
// @Failure     404  {object} handlers.ErrorResponse "Not deleted"
// @Router      /commitments/{id}/purge [delete]
func (h *Handlers) PurgeCommitment(c *gin.Context) { h.move(c, h.lifecycle.Purge) }

// BulkPurgeCommitments godoc
// @ID          bulkPurgeCommitments
// @Summary     Permanently remove archived or deleted commitments
// @Description Service director only. Active commitments in the list are skipped.
// @Tags        Lifecycle
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       body       body    handlers.BulkPurgeRequest  true  "Ids"
// @Success     200  {object} handlers.BulkPurgeResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid body"
// @Failure     403  {object} handlers.ErrorResponse "Not the service director"
// @Router      /commitments/purge [post]
func (h *Handlers) BulkPurgeCommitments(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	var req BulkPurgeRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.lifecycle.BulkPurge(c.Request.Context(), a, req.IDs)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, BulkPurgeResponse{Purged: n})
}

// ListVerifiers godoc
// @ID          listVerifiers
// @Summary     List the evidence files of a commitment
// @Tags        Verifiers
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Success     200  {array}  repo.VerifierRow
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /commitments/{id}/verifiers [get]
func (h *Handlers) ListVerifiers(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	rows, err := h.verifiers.List(c.Request.Context(), a, id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, rows)
}

// AddVerifier godoc
// @ID          addVerifier
// @Summary     Register an evidence file
// @Description The commitment must be active. Only the name and storage path are kept.
// @Tags        Verifiers
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Param       body       body    handlers.AddVerifierRequest  true  "File reference"
// @Success     201  {object} domain.Verifier
// @Failure     400  {object} handlers.ErrorResponse "Invalid body"
// @Failure     404  {object} handlers.ErrorResponse "Not active"
// @Router      /commitments/{id}/verifiers [post]
func (h *Handlers) AddVerifier(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	var req AddVerifierRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.verifiers.Add(c.Request.Context(), a, id,
		strings.TrimSpace(req.FileName), strings.TrimSpace(req.Path), strings.TrimSpace(req.Description))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, v)
}

// DeleteVerifier godoc
// @ID          deleteVerifier
// @Summary     Remove an evidence file reference
// @Tags        Verifiers
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Verifier id"
// @Success     200  {object} handlers.DeleteVerifierResponse
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /verifiers/{id} [delete]
func (h *Handlers) DeleteVerifier(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	path, err := h.verifiers.Delete(c.Request.Context(), a, id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, DeleteVerifierResponse{Path: path})
}
