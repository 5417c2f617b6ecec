package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/inspector"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/model"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/response"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/util"
)

type logsAllRequest struct {
	Start         string   `query:"start" validate:"required"`
	End           string   `query:"end" validate:"required"`
	LimitPerGroup int      `query:"limit_per_group" validate:"min=1"`
	Regions       string   `query:"regions"`
	LogGroups     string   `query:"log_groups"`
	Services      string   `query:"services"`
	GroupPatterns []string `query:"group_pattern"`
	Q             string   `query:"q"`
	Filter        string   `query:"filter"`
}

type regionRequest struct {
	Region string `query:"region" validate:"required"`
}

func (s *Server) health(c echo.Context) error {
	return response.JSON(c, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().Format(time.RFC3339),
	})
}

// logsAll aggregates events across regions (GET /logs-all).
func (s *Server) logsAll(c echo.Context) error {
	req := logsAllRequest{LimitPerGroup: s.cfg.Query.DefaultLimit}
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid query parameters", err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "invalid query parameters", err.Error())
	}
	if req.LimitPerGroup > s.cfg.Query.MaxLimit {
		return response.BadRequest(c, "invalid query parameters",
			fmt.Sprintf("limit_per_group must be at most %d", s.cfg.Query.MaxLimit))
	}
	start, err := util.ParseTime(req.Start)
	if err != nil {
		return response.BadRequest(c, "invalid start", err.Error())
	}
	end, err := util.ParseTime(req.End)
	if err != nil {
		return response.BadRequest(c, "invalid end", err.Error())
	}
	if start.After(end) {
		return response.BadRequest(c, "invalid time window", util.ErrStartAfterEnd.Error())
	}

	report, err := s.auditor.Aggregate(c.Request().Context(), inspector.Request{
		Start:         start,
		End:           end,
		LimitPerGroup: req.LimitPerGroup,
		Regions:       util.SplitCSV(req.Regions),
		LogGroups:     util.SplitCSV(req.LogGroups),
		Services:      util.SplitCSV(req.Services),
		GroupPatterns: req.GroupPatterns,
		Search:        req.Q,
		Filter:        req.Filter,
	})
	if errors.Is(err, inspector.ErrInvalidRequest) {
		return response.BadRequest(c, "invalid query parameters", err.Error())
	}
	if err != nil {
		return response.InternalError(c, "failed to fetch logs", err.Error())
	}
	c.Response().Header().Set(HeaderFailedUnits, strconv.Itoa(report.Failed()))
	return response.JSON(c, report.Events)
}

func (s *Server) regions(c echo.Context) error {
	regions, err := s.auditor.Regions(c.Request().Context())
	if err != nil {
		return response.InternalError(c, "failed to list regions", err.Error())
	}
	return response.JSON(c, regions)
}

func (s *Server) groups(c echo.Context) error {
	groups, ok, err := s.listGroups(c)
	if !ok {
		return err
	}
	return response.JSON(c, model.GroupNames(groups))
}

func (s *Server) groupsDetailed(c echo.Context) error {
	groups, ok, err := s.listGroups(c)
	if !ok {
		return err
	}
	return response.JSON(c, groups)
}

// listGroups returns ok=false once it has written an error response.
func (s *Server) listGroups(c echo.Context) ([]model.LogGroup, bool, error) {
	var req regionRequest
	if err := c.Bind(&req); err != nil {
		return nil, false, response.BadRequest(c, "invalid query parameters", err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return nil, false, response.BadRequest(c, "region is required", err.Error())
	}
	groups, err := s.auditor.Groups(c.Request().Context(), req.Region)
	if err != nil {
		return nil, false, response.InternalError(c, "failed to list groups", err.Error())
	}
	return groups, true, nil
}

func (s *Server) services(c echo.Context) error {
	return response.JSON(c, s.auditor.Services(c.Request().Context(), nil))
}

func (s *Server) metadata(c echo.Context) error {
	md, err := s.auditor.Metadata(c.Request().Context())
	if err != nil {
		return response.InternalError(c, "failed to get metadata", err.Error())
	}
	return response.JSON(c, md)
}
