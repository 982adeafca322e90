package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/campushub/events-api/pkg/errors"
	"github.com/campushub/events-api/pkg/response"
	"github.com/campushub/events-api/pkg/storage"
)

const maxProofSize = 5 << 20

// UploadHandler stores payment-proof images and serves them back to the
// reviewing organizer.
type UploadHandler struct {
	store  *storage.LocalStorage
	signer *storage.ProofLinkSigner
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(store *storage.LocalStorage, signer *storage.ProofLinkSigner) *UploadHandler {
	return &UploadHandler{store: store, signer: signer}
}

// UploadProof godoc
// @Summary Upload a payment proof image
// @Tags Uploads
// @Accept mpfd
// @Produce json
// @Param file formData file true "Proof image"
// @Success 201 {object} response.Envelope
// @Router /uploads/payment-proofs [post]
func (h *UploadHandler) UploadProof(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a file field is required"))
		return
	}
	if file.Size > maxProofSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "proof image exceeds the 5MB limit"))
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".pdf":
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "proof must be a png, jpeg or pdf"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	ref := fmt.Sprintf("proofs/%s/%s%s", claims.UserID, uuid.NewString(), ext)
	if _, err := h.store.SaveStream(ref, src); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store proof"))
		return
	}

	body := gin.H{"ref": ref}
	if h.signer != nil {
		// Time-limited link so the reviewer never handles raw storage paths.
		if token, err := h.signer.Sign(ref); err == nil {
			body["token"] = token
		}
	}
	response.JSON(c, http.StatusCreated, body, nil)
}

// GetProof godoc
// @Summary Fetch a stored payment proof
// @Tags Uploads
// @Produce octet-stream
// @Param ref query string false "Proof reference"
// @Param token query string false "Signed proof token"
// @Success 200 {file} binary
// @Router /uploads/payment-proofs [get]
func (h *UploadHandler) GetProof(c *gin.Context) {
	ref := c.Query("ref")
	if token := c.Query("token"); token != "" && h.signer != nil {
		verified, err := h.signer.Verify(token)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid proof token"))
			return
		}
		ref = verified
	}
	if ref == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ref or token is required"))
		return
	}
	file, err := h.store.Open(ref)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "proof not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filepath.Base(ref)))
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", file, nil)
}
