package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/storeassist/pkg/attachment"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/session"
)

// maxContentLength caps a single user message.
const maxContentLength = 100_000

// stateHandler handles GET /api/v1/state.
func (s *Server) stateHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, newStateResponse(s.manager.Snapshot()))
}

// selectEntityHandler handles POST /api/v1/entity.
// Switching entity cancels the in-flight turn of the previous session.
func (s *Server) selectEntityHandler(c *echo.Context) error {
	var req SelectEntityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entity := &models.Entity{
		Type:   models.EntityType(req.EntityType),
		ID:     req.EntityID,
		Title:  req.Title,
		Fields: req.Fields,
	}
	if !entity.Type.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid entity_type %q", req.EntityType))
	}
	if entity.Type != models.EntityTypeAgent && entity.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "entity_id is required")
	}

	ctx := c.Request().Context()
	var err error
	if req.SessionID != "" {
		err = s.manager.LoadSession(ctx, req.SessionID, entity)
	} else {
		err = s.manager.SelectEntity(ctx, entity)
	}
	if err != nil {
		return mapSessionError(err)
	}
	return c.JSON(http.StatusOK, newStateResponse(s.manager.Snapshot()))
}

// newChatHandler handles POST /api/v1/new-chat.
func (s *Server) newChatHandler(c *echo.Context) error {
	if err := s.manager.NewChat(c.Request().Context()); err != nil {
		return mapSessionError(err)
	}
	return c.JSON(http.StatusOK, newStateResponse(s.manager.Snapshot()))
}

// reloadSessionHandler handles POST /api/v1/session/reload.
func (s *Server) reloadSessionHandler(c *echo.Context) error {
	if err := s.manager.LoadSessionMessages(c.Request().Context()); err != nil {
		return mapSessionError(err)
	}
	return c.JSON(http.StatusOK, newStateResponse(s.manager.Snapshot()))
}

// sendMessageHandler handles POST /api/v1/messages.
// The turn runs in the background; its progress is pushed over /ws.
func (s *Server) sendMessageHandler(c *echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Content) > maxContentLength {
		return echo.NewHTTPError(http.StatusBadRequest, "content exceeds maximum length of 100,000 characters")
	}

	st := s.manager.Snapshot()
	if err := checkReady(st); err != nil {
		return err
	}
	if strings.TrimSpace(req.Content) == "" && req.QuickAction == "" && len(st.Attachments) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	run, err := s.manager.StartSend(s.baseCtx, req.Content, req.QuickAction)
	if err != nil {
		return mapSessionError(err)
	}
	s.runTurn("send_message", run)
	return c.JSON(http.StatusAccepted, &AcceptedResponse{SessionID: st.SessionID, Status: "processing"})
}

// selectOptionHandler handles POST /api/v1/options/:index.
func (s *Server) selectOptionHandler(c *echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}
	st := s.manager.Snapshot()
	if err := checkReady(st); err != nil {
		return err
	}
	if index < 0 || index >= len(st.Options) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("no option at index %d", index))
	}

	run, err := s.manager.StartOption(s.baseCtx, index)
	if err != nil {
		return mapSessionError(err)
	}
	s.runTurn("select_option", run)
	return c.JSON(http.StatusAccepted, &AcceptedResponse{SessionID: st.SessionID, Status: "processing"})
}

// confirmationHandler handles POST /api/v1/confirmation.
func (s *Server) confirmationHandler(c *echo.Context) error {
	var req ConfirmationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st := s.manager.Snapshot()
	if err := checkReady(st); err != nil {
		return err
	}

	run, err := s.manager.StartConfirmation(s.baseCtx, req.Yes)
	if err != nil {
		return mapSessionError(err)
	}
	s.runTurn("answer_confirmation", run)
	return c.JSON(http.StatusAccepted, &AcceptedResponse{SessionID: st.SessionID, Status: "processing"})
}

// addAttachmentsHandler handles POST /api/v1/attachments (multipart field "files").
func (s *Server) addAttachmentsHandler(c *echo.Context) error {
	r := c.Request()
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "files are required")
	}

	files := make([]attachment.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
		}
		files = append(files, attachment.File{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	rejections := s.manager.AddFiles(files)
	return c.JSON(http.StatusOK, &AttachmentsResponse{
		Attachments: newAttachmentResponses(s.manager.Snapshot().Attachments),
		Rejections:  newRejectionResponses(rejections),
	})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// clearAttachmentsHandler handles DELETE /api/v1/attachments.
func (s *Server) clearAttachmentsHandler(c *echo.Context) error {
	s.manager.ClearAttachments()
	return c.NoContent(http.StatusNoContent)
}

// removeAttachmentHandler handles DELETE /api/v1/attachments/:index.
func (s *Server) removeAttachmentHandler(c *echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}
	if !s.manager.RemoveAttachment(index) {
		return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// previewHandler handles GET /previews/:handle.
func (s *Server) previewHandler(c *echo.Context) error {
	data, mimeType, ok := s.manager.Previews().Get(c.Param("handle"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "preview not found")
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, mimeType, data)
}

// applySuggestionHandler handles POST /api/v1/suggestions/:id/apply.
func (s *Server) applySuggestionHandler(c *echo.Context) error {
	if err := s.manager.ApplySuggestion(c.Request().Context(), c.Param("id")); err != nil {
		return mapSessionError(err)
	}
	return c.JSON(http.StatusOK, newStateResponse(s.manager.Snapshot()))
}

// discardSuggestionHandler handles POST /api/v1/suggestions/:id/discard.
func (s *Server) discardSuggestionHandler(c *echo.Context) error {
	if err := s.manager.DiscardSuggestion(c.Request().Context(), c.Param("id")); err != nil {
		return mapSessionError(err)
	}
	return c.JSON(http.StatusOK, newStateResponse(s.manager.Snapshot()))
}

// applyAllHandler handles POST /api/v1/suggestions/apply-all.
func (s *Server) applyAllHandler(c *echo.Context) error {
	if err := s.manager.ApplyAllSuggestions(c.Request().Context()); err != nil {
		return mapSessionError(err)
	}
	return c.JSON(http.StatusOK, newStateResponse(s.manager.Snapshot()))
}

// discardAllHandler handles POST /api/v1/suggestions/discard-all.
func (s *Server) discardAllHandler(c *echo.Context) error {
	if err := s.manager.DiscardAllSuggestions(c.Request().Context()); err != nil {
		return mapSessionError(err)
	}
	return c.JSON(http.StatusOK, newStateResponse(s.manager.Snapshot()))
}

// imageActionHandler handles POST /api/v1/images/actions.
func (s *Server) imageActionHandler(c *echo.Context) error {
	var req ImageActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.URL == "" || req.Action == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url and action are required")
	}
	if err := s.manager.ImageAction(c.Request().Context(), req.URL, models.ImageAction(req.Action)); err != nil {
		return mapSessionError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// checkReady rejects turn requests that the manager would refuse anyway, so
// the caller gets the error synchronously.
func checkReady(st session.State) error {
	if st.SessionID == "" {
		return echo.NewHTTPError(http.StatusConflict, "no active session")
	}
	if st.Busy {
		return echo.NewHTTPError(http.StatusConflict, "a request is already in progress")
	}
	return nil
}
