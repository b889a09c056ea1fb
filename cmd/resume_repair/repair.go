package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"resume-builder-go/internal/resume"
	"resume-builder-go/internal/service"
	"resume-builder-go/internal/storage"
	"resume-builder-go/internal/storage/models"
)

// 配置并发数
const (
	defaultConcurrency = 5
	defaultPageSize    = 100
)

// resumePager 按主键分页遍历全部简历，回写以读取时的 updated_at 为条件
type resumePager interface {
	ListResumesAfter(ctx context.Context, afterID string, limit int) ([]models.Resume, error)
	SaveResumeDocumentIfUnchanged(ctx context.Context, owner, id string, readAt time.Time, doc []byte, eventType string) error
}

// Report 一次修复的统计
type Report struct {
	Scanned   int `json:"scanned"`
	Pending   int `json:"pending"`
	Unchanged int `json:"unchanged"`
	Upgraded  int `json:"upgraded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Repairer 把存储中的简历升级到当前结构
type Repairer struct {
	store       resumePager
	upgrader    *resume.Upgrader
	concurrency int
	pageSize    int
	dryRun      bool
	log         zerolog.Logger
}

// NewRepairer concurrency 与 pageSize 非正时使用默认值
func NewRepairer(store resumePager, upgrader *resume.Upgrader, concurrency, pageSize int, dryRun bool, log zerolog.Logger) *Repairer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Repairer{
		store:       store,
		upgrader:    upgrader,
		concurrency: concurrency,
		pageSize:    pageSize,
		dryRun:      dryRun,
		log:         log,
	}
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeUnchanged
	outcomeUpgraded
	outcomeSkipped
	outcomeFailed
)

// Run 逐页处理，每页内部并发，页与页之间串行
func (r *Repairer) Run(ctx context.Context) (Report, error) {
	var report Report
	var mu sync.Mutex
	afterID := ""

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rows, err := r.store.ListResumesAfter(ctx, afterID, r.pageSize)
		if err != nil {
			return report, fmt.Errorf("读取简历失败: %w", err)
		}
		if len(rows) == 0 {
			return report, nil
		}

		semaphore := make(chan struct{}, r.concurrency)
		var wg sync.WaitGroup
		for i := range rows {
			row := rows[i]
			wg.Add(1)
			semaphore <- struct{}{}

			go func() {
				defer func() {
					<-semaphore
					wg.Done()
				}()
				result := r.repairOne(ctx, &row)

				mu.Lock()
				defer mu.Unlock()
				report.Scanned++
				switch result {
				case outcomePending:
					report.Pending++
				case outcomeUnchanged:
					report.Unchanged++
				case outcomeUpgraded:
					report.Upgraded++
				case outcomeSkipped:
					report.Skipped++
				case outcomeFailed:
					report.Failed++
				}
			}()
		}
		wg.Wait()

		afterID = rows[len(rows)-1].ID
		r.log.Info().Str("after_id", afterID).Int("scanned", report.Scanned).Msg("批次处理完成")
		if len(rows) < r.pageSize {
			return report, nil
		}
	}
}

func (r *Repairer) repairOne(ctx context.Context, row *models.Resume) outcome {
	if !row.HasContent() {
		return outcomePending
	}
	_, upgraded, changed, err := service.UpgradeStored(r.upgrader, row.NormalizedJSON)
	if err != nil {
		r.log.Error().Err(err).Str("resume_id", row.ID).Msg("升级简历失败")
		return outcomeFailed
	}
	if !changed {
		return outcomeUnchanged
	}
	if r.dryRun {
		r.log.Info().Str("resume_id", row.ID).Msg("[dry-run] 简历需要升级")
		return outcomeUpgraded
	}
	err = r.store.SaveResumeDocumentIfUnchanged(ctx, row.UserEmail, row.ID, row.UpdatedAt, upgraded, models.EventResumeUpdated)
	if errors.Is(err, storage.ErrStaleWrite) {
		r.log.Info().Str("resume_id", row.ID).Msg("简历在读取后被修改，跳过")
		return outcomeSkipped
	}
	if err != nil {
		r.log.Error().Err(err).Str("resume_id", row.ID).Msg("回写简历失败")
		return outcomeFailed
	}
	r.log.Debug().Str("resume_id", row.ID).Msg("简历已升级")
	return outcomeUpgraded
}
