package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/seatfee/internal/audit/domain"
	"github.com/smallbiznis/seatfee/internal/clock"
	obscontext "github.com/smallbiznis/seatfee/internal/observability/context"
	subscriberdomain "github.com/smallbiznis/seatfee/internal/subscriber/domain"
	"github.com/smallbiznis/seatfee/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = "system"
	}

	log := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    optionalString(actorID),
		Action:     action,
		TargetType: targetType,
		TargetID:   optionalString(entry.TargetID),
		OldValue:   s.encode(action, entry.OldValue),
		NewValue:   s.encode(action, entry.NewValue),
		RequestID:  optionalString(obscontext.RequestIDFromContext(ctx)),
		CreatedAt:  s.clock.Now(),
	}
	if entry.SubscriberID != 0 {
		subscriberID := entry.SubscriberID
		log.SubscriberID = &subscriberID
	}

	if err := s.repo.Insert(ctx, s.db, &log); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	filter := auditdomain.ListFilter{Action: req.Action}

	if value := strings.TrimSpace(req.SubscriberID); value != "" {
		id, err := snowflake.ParseString(value)
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, subscriberdomain.ErrInvalidSubscriber
		}
		filter.SubscriberID = id
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		filter.BeforeID = id
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}
	filter.Limit = pageSize + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo, err := pagination.Trim(items, pageSize, func(item *auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String()}
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}

func (s *Service) encode(action string, value any) datatypes.JSON {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("audit value not serializable", zap.String("action", action), zap.Error(err))
		return nil
	}
	return datatypes.JSON(raw)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
