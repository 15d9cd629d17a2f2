package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kaleidoswap/payflow/internal/feerate"
	"github.com/kaleidoswap/payflow/internal/payflow"
)

func (s *Server) handleListAssets(c echo.Context) error {
	assets := s.wallet.List()
	views := make([]assetView, 0, len(assets))
	for _, a := range assets {
		views = append(views, newAssetView(a))
	}
	return c.JSON(http.StatusOK, assetsResponse{Assets: views, RefreshedAt: s.wallet.RefreshedAt()})
}

func (s *Server) handleOpenDraft(c echo.Context) error {
	var req openDraftRequest
	if err := s.bind(c, &req); err != nil {
		return s.respondError(c, err)
	}
	flow, err := s.manager.Open(req.AssetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newDraftView(flow.Status()))
}

func (s *Server) handleGetDraft(c echo.Context) error {
	flow, err := s.lookupFlow(c)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, newDraftView(flow.Status()))
}

func (s *Server) handleCloseDraft(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return s.respondError(c, echo.NewHTTPError(http.StatusBadRequest, "invalid draft id"))
	}
	if !s.manager.Close(id) {
		return s.respondError(c, echo.NewHTTPError(http.StatusNotFound, "draft not found"))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleInput(c echo.Context) error {
	flow, err := s.lookupFlow(c)
	if err != nil {
		return s.respondError(c, err)
	}
	var req inputRequest
	if err := s.bind(c, &req); err != nil {
		return s.respondError(c, err)
	}
	if err := flow.InputChanged(req.Destination); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, newDraftView(flow.Status()))
}

func (s *Server) handleAmount(c echo.Context) error {
	flow, err := s.lookupFlow(c)
	if err != nil {
		return s.respondError(c, err)
	}
	var req amountRequest
	if err := s.bind(c, &req); err != nil {
		return s.respondError(c, err)
	}
	if err := flow.AmountChanged(req.Amount); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, newDraftView(flow.Status()))
}

func (s *Server) handleSelectAsset(c echo.Context) error {
	flow, err := s.lookupFlow(c)
	if err != nil {
		return s.respondError(c, err)
	}
	var req assetRequest
	if err := s.bind(c, &req); err != nil {
		return s.respondError(c, err)
	}
	if err := flow.SelectAsset(req.AssetID); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, newDraftView(flow.Status()))
}

func (s *Server) handleFee(c echo.Context) error {
	flow, err := s.lookupFlow(c)
	if err != nil {
		return s.respondError(c, err)
	}
	var req feeRequest
	if err := s.bind(c, &req); err != nil {
		return s.respondError(c, err)
	}
	if err := flow.SetFee(feerate.Policy(req.Policy), req.CustomRate); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, newDraftView(flow.Status()))
}

func (s *Server) handleUseMax(c echo.Context) error {
	flow, err := s.lookupFlow(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if err := flow.UseMaxAmount(); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, newDraftView(flow.Status()))
}

func (s *Server) handleReview(c echo.Context) error {
	flow, err := s.lookupFlow(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if err := flow.Review(); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, newDraftView(flow.Status()))
}

func (s *Server) handleConfirm(c echo.Context) error {
	flow, err := s.lookupFlow(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if err := flow.Confirm(); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, newDraftView(flow.Status()))
}

func (s *Server) handleBack(c echo.Context) error {
	flow, err := s.lookupFlow(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if err := flow.EditBack(); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, newDraftView(flow.Status()))
}

func (s *Server) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

func (s *Server) lookupFlow(c echo.Context) (*payflow.Flow, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid draft id")
	}
	flow, ok := s.manager.Get(id)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "draft not found")
	}
	return flow, nil
}

// respondError maps domain errors onto the shared error shape: draft
// validation 422, wrong-state events 409, malformed requests 400.
func (s *Server) respondError(c echo.Context, err error) error {
	var verr *payflow.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: validationBody(verr)})
	}

	var serr *payflow.StateError
	if errors.As(err, &serr) {
		return c.JSON(http.StatusConflict, errorResponse{Error: errorBody{
			Code:    "invalid_state",
			Message: serr.Error(),
		}})
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		field := ""
		if len(fieldErrs) > 0 {
			field = strings.ToLower(fieldErrs[0].Field())
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{
			Field:   field,
			Code:    "invalid_request",
			Message: err.Error(),
		}})
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return c.JSON(httpErr.Code, errorResponse{Error: errorBody{
			Code:    codeForStatus(httpErr.Code),
			Message: fmt.Sprintf("%v", httpErr.Message),
		}})
	}

	s.log.WithError(err).Error("request failed")
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: errorBody{
		Code:    "internal_error",
		Message: "internal error",
	}})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}
