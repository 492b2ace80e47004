package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const uniqueViolation = "23505"

type journalRow struct {
	ID        uint      `gorm:"primaryKey"`
	RoomCode  string    `gorm:"not null;uniqueIndex:idx_journal_entry"`
	PlayerID  int       `gorm:"not null;uniqueIndex:idx_journal_entry"`
	Version   int       `gorm:"not null;uniqueIndex:idx_journal_entry"`
	Tag       string    `gorm:"not null"`
	Frame     []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (journalRow) TableName() string { return "session_journal" }

// Gorm persists the journal in Postgres.
type Gorm struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	return NewGorm(db)
}

// NewGorm migrates the journal table on db.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&journalRow{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Append(ctx context.Context, e Entry) error {
	row := journalRow{
		RoomCode:  e.RoomCode,
		PlayerID:  e.PlayerID,
		Version:   e.Version,
		Tag:       e.Tag,
		Frame:     e.Frame,
		CreatedAt: e.CreatedAt,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%d v%d", ErrDuplicateEntry, e.RoomCode, e.PlayerID, e.Version)
		}
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

func (g *Gorm) Load(ctx context.Context, roomCode string, playerID int) ([]Entry, error) {
	var rows []journalRow
	err := g.db.WithContext(ctx).
		Where("room_code = ? AND player_id = ?", roomCode, playerID).
		Order("version ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{
			RoomCode:  r.RoomCode,
			PlayerID:  r.PlayerID,
			Version:   r.Version,
			Tag:       r.Tag,
			Frame:     r.Frame,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
