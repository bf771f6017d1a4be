package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"bus-tracker/model"
)

// Options controls how InitDB connects.
type Options struct {
	DSN        string
	MaxRetries int
	RetryDelay time.Duration
}

// InitDB opens Postgres through the pgx driver, retrying while the server
// is still starting, and migrates the schema.
func InitDB(ctx context.Context, opts Options) (*gorm.DB, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 30
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	sqlDB, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	for i := 0; i < opts.MaxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = sqlDB.PingContext(pingCtx)
		cancel()
		if err == nil {
			break
		}
		log.WithError(err).Warnf("waiting for database (%d/%d)", i+1, opts.MaxRetries)
		select {
		case <-ctx.Done():
			sqlDB.Close()
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.New(log.StandardLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	if err := gdb.WithContext(ctx).AutoMigrate(
		&model.User{}, &model.Route{}, &model.Stop{}, &model.Bus{},
		&model.Position{}, &model.PathSegment{}, &model.Schedule{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return gdb, nil
}

// GormStore is the Postgres-backed store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) IsEmpty(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Route{}).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to count routes: %w", err)
	}
	return n == 0, nil
}

// Import inserts a seed set in one transaction and resets the route id
// sequence past the explicit ids from the file.
func (s *GormStore) Import(ctx context.Context, set *SeedSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Routes keep the ids from the file
		if len(set.Routes) > 0 {
			if err := tx.CreateInBatches(set.Routes, 100).Error; err != nil {
				return fmt.Errorf("failed to insert routes: %w", err)
			}
			if err := tx.Exec("SELECT setval(pg_get_serial_sequence('routes', 'id'), (SELECT MAX(id) FROM routes))").Error; err != nil {
				return fmt.Errorf("failed to reset route sequence: %w", err)
			}
		}
		// 2. Stops and drawn segments of each route
		if len(set.Stops) > 0 {
			if err := tx.CreateInBatches(set.Stops, 100).Error; err != nil {
				return fmt.Errorf("failed to insert stops: %w", err)
			}
		}
		if len(set.Segments) > 0 {
			if err := tx.CreateInBatches(set.Segments, 100).Error; err != nil {
				return fmt.Errorf("failed to insert segments: %w", err)
			}
		}

		// 3. Drivers, then buses pointing at them by username
		userIDs := make(map[string]uint)
		if len(set.Users) > 0 {
			if err := tx.CreateInBatches(set.Users, 100).Error; err != nil {
				return fmt.Errorf("failed to insert drivers: %w", err)
			}
			for _, u := range set.Users {
				userIDs[u.Username] = u.ID
			}
		}

		buses := make([]model.Bus, len(set.Buses))
		for i, b := range set.Buses {
			buses[i] = b
			if name, ok := set.BusDrivers[b.Name]; ok {
				uid, ok := userIDs[name]
				if !ok {
					return fmt.Errorf("bus %q: unknown driver %q", b.Name, name)
				}
				buses[i].DriverID = &uid
			}
		}
		if len(buses) > 0 {
			if err := tx.CreateInBatches(buses, 100).Error; err != nil {
				return fmt.Errorf("failed to insert buses: %w", err)
			}
		}
		// 4. Timetable
		if len(set.Schedules) > 0 {
			if err := tx.CreateInBatches(set.Schedules, 100).Error; err != nil {
				return fmt.Errorf("failed to insert schedules: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) GetBus(ctx context.Context, id uint) (*model.Bus, error) {
	var bus model.Bus
	if err := s.db.WithContext(ctx).Preload("Route").First(&bus, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &bus, nil
}

func (s *GormStore) GetBusByDriver(ctx context.Context, userID uint) (*model.Bus, error) {
	var bus model.Bus
	err := s.db.WithContext(ctx).Preload("Route").Where("driver_id = ?", userID).First(&bus).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &bus, nil
}

func (s *GormStore) LiveBuses(ctx context.Context, since time.Time) ([]model.Bus, error) {
	var buses []model.Bus
	err := s.db.WithContext(ctx).Preload("Route").
		Where("active = ? AND last_update >= ?", true, since).
		Order("id").Find(&buses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query live buses: %w", err)
	}
	return buses, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) CurrentPosition(ctx context.Context, busID uint) (*model.Position, error) {
	var pos model.Position
	err := s.db.WithContext(ctx).
		Joins("JOIN buses ON buses.current_position_id = positions.id").
		Where("buses.id = ?", busID).
		First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query current position: %w", err)
	}
	return &pos, nil
}

func (s *GormStore) RecentPositions(ctx context.Context, busID uint, since time.Time, limit int) ([]model.Position, error) {
	q := s.db.WithContext(ctx).
		Where("bus_id = ? AND active = ? AND recorded_at >= ?", busID, true, since).
		Order("recorded_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var positions []model.Position
	if err := q.Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	return positions, nil
}

func (s *GormStore) PositionsSince(ctx context.Context, busID uint, since time.Time) ([]model.Position, error) {
	var positions []model.Position
	err := s.db.WithContext(ctx).
		Where("bus_id = ? AND recorded_at >= ?", busID, since).
		Order("recorded_at DESC, id DESC").
		Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	return positions, nil
}

// RecordPosition inserts the fix and moves the bus pointer in one
// transaction. The bus row is locked first so fixes of one bus serialize.
func (s *GormStore) RecordPosition(ctx context.Context, busID uint, p model.Point, at time.Time) (*model.Position, error) {
	pos := model.Position{BusID: busID, Lat: p.Lat, Lng: p.Lng, RecordedAt: at, Active: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bus model.Bus
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&bus, busID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Create(&pos).Error; err != nil {
			return fmt.Errorf("failed to insert position: %w", err)
		}
		return tx.Model(&model.Bus{}).Where("id = ?", busID).Updates(map[string]interface{}{
			"current_position_id": pos.ID,
			"last_update":         at,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

func (s *GormStore) ClearPositions(ctx context.Context, busID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Bus{}).Where("id = ?", busID).Updates(map[string]interface{}{
			"current_position_id": nil,
			"last_update":         nil,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		del := tx.Where("bus_id = ?", busID).Delete(&model.Position{})
		n = del.RowsAffected
		return del.Error
	})
	return n, err
}

func (s *GormStore) SweepStale(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Position{}).
		Where("active = ? AND recorded_at < ?", true, before).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep positions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// InactivePositionsBefore lists aged-out fixes, never a bus's current one.
func (s *GormStore) InactivePositionsBefore(ctx context.Context, before time.Time, limit int) ([]model.Position, error) {
	q := s.db.WithContext(ctx).
		Where("active = ? AND recorded_at < ?", false, before).
		Where("id NOT IN (?)", s.db.Model(&model.Bus{}).Select("current_position_id").Where("current_position_id IS NOT NULL")).
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var positions []model.Position
	if err := q.Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to query inactive positions: %w", err)
	}
	return positions, nil
}

func (s *GormStore) DeletePositions(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Position{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete positions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) GetStop(ctx context.Context, id uint) (*model.Stop, error) {
	var stop model.Stop
	if err := s.db.WithContext(ctx).First(&stop, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &stop, nil
}

func (s *GormStore) ListStops(ctx context.Context) ([]model.Stop, error) {
	var stops []model.Stop
	if err := s.db.WithContext(ctx).Order("route_id, direction, stop_order, id").Find(&stops).Error; err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	return stops, nil
}

func (s *GormStore) StopsByRoute(ctx context.Context, routeID uint) ([]model.Stop, error) {
	var stops []model.Stop
	err := s.db.WithContext(ctx).Where("route_id = ?", routeID).
		Order("direction, stop_order, id").Find(&stops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query route stops: %w", err)
	}
	return stops, nil
}

func (s *GormStore) StopsByDirection(ctx context.Context, routeID uint, dir model.Direction) ([]model.Stop, error) {
	var stops []model.Stop
	err := s.db.WithContext(ctx).Where("route_id = ? AND direction = ?", routeID, dir).
		Order("stop_order").Find(&stops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query %s stops: %w", dir, err)
	}
	return stops, nil
}

func (s *GormStore) GetRoute(ctx context.Context, id uint) (*model.Route, error) {
	var route model.Route
	if err := s.db.WithContext(ctx).First(&route, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &route, nil
}

func (s *GormStore) ListRoutes(ctx context.Context) ([]model.Route, error) {
	var routes []model.Route
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	return routes, nil
}

func (s *GormStore) Segments(ctx context.Context, routeID uint, dir model.Direction) ([]model.PathSegment, error) {
	var segs []model.PathSegment
	err := s.db.WithContext(ctx).
		Where("route_id = ? AND direction = ? AND active = ?", routeID, dir, true).
		Order("id").Find(&segs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	return segs, nil
}

func (s *GormStore) Schedules(ctx context.Context, routeID *uint) ([]model.Schedule, error) {
	q := s.db.WithContext(ctx).Where("active = ?", true)
	if routeID != nil {
		q = q.Where("route_id = ?", *routeID)
	}
	var schedules []model.Schedule
	if err := q.Order("route_id, departure").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	return schedules, nil
}
