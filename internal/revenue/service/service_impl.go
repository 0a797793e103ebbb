package service

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/internal/besteffort"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/plannivo/finance/internal/clock"
	commissiondomain "github.com/plannivo/finance/internal/commission/domain"
	"github.com/plannivo/finance/internal/config"
	obslogger "github.com/plannivo/finance/internal/observability/logger"
	obsmetrics "github.com/plannivo/finance/internal/observability/metrics"
	"github.com/plannivo/finance/internal/revenue/domain"
	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Bookings      bookingdomain.Repository
	Commissions   commissiondomain.Repository
	CommissionSvc commissiondomain.Service
	Settings      settingsdomain.TxResolver
	Finance       config.FinanceSource
	Runner        besteffort.Submitter
	Sampler       domain.Sampler      `optional:"true"`
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	bookings      bookingdomain.Repository
	commissions   commissiondomain.Repository
	commissionSvc commissiondomain.Service
	settings      settingsdomain.TxResolver
	finance       config.FinanceSource
	runner        besteffort.Submitter
	sample        domain.Sampler
	metrics       *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	sample := p.Sampler
	if sample == nil {
		sample = func() int { return rand.IntN(100) }
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("revenue.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		bookings:      p.Bookings,
		commissions:   p.Commissions,
		commissionSvc: p.CommissionSvc,
		settings:      p.Settings,
		finance:       p.Finance,
		runner:        p.Runner,
		sample:        sample,
		metrics:       p.Metrics,
	}
}

func (s *Service) WriteSnapshot(ctx context.Context, ref domain.EntityRef) (domain.Result, error) {
	return s.write(ctx, ref, true)
}

// Submit hands the snapshot to the best-effort runner. Its outcome never
// reaches the caller.
func (s *Service) Submit(ctx context.Context, ref domain.EntityRef) bool {
	if s.runner == nil {
		return false
	}
	return s.runner.Submit("revenue_snapshot", func(taskCtx context.Context) error {
		_, err := s.WriteSnapshot(taskCtx, ref)
		return err
	})
}

// RebuildSnapshots rewrites the snapshot of every completed booking, rental
// and stay in [from, to). The feature flag applies; canary sampling does not.
func (s *Service) RebuildSnapshots(ctx context.Context, from, to time.Time) (domain.RebuildResult, error) {
	if !from.Before(to) {
		return domain.RebuildResult{}, domain.ErrInvalidTimeRange
	}
	if !s.finance.Get().RevenueSnapshots.Enabled {
		return domain.RebuildResult{}, domain.ErrSnapshotsDisabled
	}

	refs, err := s.completedRefs(ctx, from, to)
	if err != nil {
		return domain.RebuildResult{}, err
	}

	var result domain.RebuildResult
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := s.write(ctx, ref, false)
		switch {
		case err != nil:
			result.Failed++
		case res.Outcome == domain.OutcomeWritten:
			result.Written++
		default:
			result.Skipped++
		}
	}

	s.log.Info("revenue snapshots rebuilt",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("written", result.Written),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) Get(ctx context.Context, ref domain.EntityRef) (*domain.RevenueItem, error) {
	if !ref.Type.Valid() || ref.ID == 0 {
		return nil, domain.ErrInvalidEntity
	}
	item, err := s.repo.FindByEntity(ctx, s.db, ref)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (s *Service) completedRefs(ctx context.Context, from, to time.Time) ([]domain.EntityRef, error) {
	bookings, err := s.bookings.ListCompletedBookings(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}
	rentals, err := s.bookings.ListCompletedRentals(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}
	stays, err := s.bookings.ListCompletedAccommodations(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}

	refs := make([]domain.EntityRef, 0, len(bookings)+len(rentals)+len(stays))
	for _, b := range bookings {
		refs = append(refs, domain.EntityRef{Type: domain.EntityBooking, ID: b.ID})
	}
	for _, r := range rentals {
		refs = append(refs, domain.EntityRef{Type: domain.EntityRental, ID: r.ID})
	}
	for _, a := range stays {
		refs = append(refs, domain.EntityRef{Type: domain.EntityAccommodation, ID: a.ID})
	}
	return refs, nil
}

func (s *Service) write(ctx context.Context, ref domain.EntityRef, sampled bool) (domain.Result, error) {
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("entity_type", string(ref.Type)),
		zap.String("entity_id", ref.ID.String()),
	)

	cfg := s.finance.Get().RevenueSnapshots
	if !cfg.Enabled {
		return s.skip(ctx, ref, domain.ReasonDisabled), nil
	}
	if sampled && cfg.CanaryPercent < 100 && s.sample() >= cfg.CanaryPercent {
		return s.skip(ctx, ref, domain.ReasonCanary), nil
	}
	if !ref.Type.Valid() || ref.ID == 0 {
		s.metrics.RecordSnapshotWrite(ctx, string(ref.Type), string(domain.OutcomeFailed), domain.ReasonInvalidEntity)
		return domain.Result{Outcome: domain.OutcomeFailed, Reason: domain.ReasonInvalidEntity}, domain.ErrInvalidEntity
	}

	var (
		item   *domain.RevenueItem
		reason string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := s.loadSource(ctx, tx, ref)
		if err != nil {
			return err
		}
		if src == nil {
			reason = domain.ReasonNotFound
			return nil
		}
		if !src.completed {
			reason = domain.ReasonNotCompleted
			return nil
		}

		eff := s.settings.ResolveAccrualIn(ctx, tx, src.resolveContext())

		commission, commissionSource, err := s.commissionFor(ctx, tx, src)
		if err != nil {
			return err
		}

		built := s.buildItem(src, eff, commission, commissionSource)
		if err := s.repo.Upsert(ctx, tx, built); err != nil {
			return err
		}
		// read back so a replaced row reports its original identity
		stored, err := s.repo.FindByEntity(ctx, tx, ref)
		if err != nil {
			return err
		}
		item = stored
		return nil
	})
	if err != nil {
		log.Warn("revenue snapshot failed", zap.Error(err))
		s.metrics.RecordSnapshotWrite(ctx, string(ref.Type), string(domain.OutcomeFailed), domain.ReasonStorage)
		return domain.Result{Outcome: domain.OutcomeFailed, Reason: domain.ReasonStorage}, err
	}
	if item == nil {
		return s.skip(ctx, ref, reason), nil
	}

	s.metrics.RecordSnapshotWrite(ctx, string(ref.Type), string(domain.OutcomeWritten), "")
	log.Debug("revenue snapshot written",
		zap.String("gross", item.Gross.StringFixed(money.Places)),
		zap.String("net", item.Net.StringFixed(money.Places)),
	)
	return domain.Result{Outcome: domain.OutcomeWritten, Item: item}, nil
}

func (s *Service) buildItem(
	src *source,
	eff *settingsdomain.EffectiveSettings,
	commission decimal.Decimal,
	commissionSource commissiondomain.Source,
) *domain.RevenueItem {
	breakdown := domain.Decompose(src.gross, commission, eff, src.paymentMethod)

	components := datatypes.JSONMap{
		"commission_source": string(commissionSource),
		"basis":             string(settingsdomain.BasisAccrual),
	}
	var settingsID *snowflake.ID
	if eff == nil {
		components["settings"] = domain.ReasonSettingsAbsent
	} else {
		id := eff.SettingsID
		settingsID = &id
		fee := eff.FeeFor(src.paymentMethod)
		components["settings_version"] = eff.Version
		components["tax_rate_pct"] = eff.TaxRatePct.String()
		components["insurance_rate_pct"] = eff.InsuranceRatePct.String()
		components["equipment_rate_pct"] = eff.EquipmentRatePct.String()
		components["fee_pct"] = fee.Pct.String()
		components["fee_fixed"] = fee.Fixed.String()
		if len(eff.AppliedOverrides) > 0 {
			applied := make([]string, 0, len(eff.AppliedOverrides))
			for _, overrideID := range eff.AppliedOverrides {
				applied = append(applied, overrideID.String())
			}
			components["applied_overrides"] = applied
		}
	}

	now := s.clock.Now()
	return &domain.RevenueItem{
		ID:                s.genID.Generate(),
		EntityType:        src.ref.Type,
		EntityID:          src.ref.ID,
		ServiceType:       src.serviceType,
		PaymentMethod:     src.paymentMethod,
		Gross:             breakdown.Gross,
		Commission:        breakdown.Commission,
		Tax:               breakdown.Tax,
		Insurance:         breakdown.Insurance,
		Equipment:         breakdown.Equipment,
		PaymentFee:        breakdown.PaymentFee,
		Net:               breakdown.Net,
		SettingsVersionID: settingsID,
		Components:        components,
		RecognizedAt:      src.recognizedAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (s *Service) skip(ctx context.Context, ref domain.EntityRef, reason string) domain.Result {
	s.metrics.RecordSnapshotWrite(ctx, string(ref.Type), string(domain.OutcomeSkipped), reason)
	return domain.Result{Outcome: domain.OutcomeSkipped, Reason: reason}
}
