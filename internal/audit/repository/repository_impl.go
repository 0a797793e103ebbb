package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (
			id, actor_type, actor_id, action, target_type, target_id, subject_id, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ActorType,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.SubjectID,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListByActionAndSubject(ctx context.Context, db *gorm.DB, action string, subjectID snowflake.ID) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, actor_type, actor_id, action, target_type, target_id, subject_id, metadata, created_at
		 FROM audit_logs
		 WHERE action = ? AND subject_id = ?
		 ORDER BY created_at ASC, id ASC`,
		action,
		subjectID,
	).Scan(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
