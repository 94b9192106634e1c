package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bookshelf/pkg/domain"
)

const migrateLockID int64 = 40417021

// GormStore implements Store on Postgres through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database and migrates the schema under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   gormLog,
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return newGormStore(db)
}

func newGormStore(db *gorm.DB) (*GormStore, error) {
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &ReviewModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := advisory(ctx, conn, "SELECT pg_advisory_lock($1)"); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = advisory(ctx, conn, "SELECT pg_advisory_unlock($1)")
	}()
	return fn(db)
}

func advisory(ctx context.Context, conn *sql.Conn, query string) error {
	_, err := conn.ExecContext(ctx, query, migrateLockID)
	return err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return translate(s.db.WithContext(ctx).Create(&model).Error)
}

func (s *GormStore) UpdateUser(ctx context.Context, u domain.User) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"role":          string(u.Role),
		"updated_at":    u.UpdatedAt,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	return s.firstUser(ctx, "id = ?", id)
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	return s.firstUser(ctx, "email = ?", email)
}

func (s *GormStore) firstUser(ctx context.Context, cond string, arg any) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where(cond, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

func (s *GormStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) CreateBook(ctx context.Context, b domain.Book) error {
	model := bookToModel(b)
	return translate(s.db.WithContext(ctx).Omit("AddedBy").Create(&model).Error)
}

func (s *GormStore) UpdateBook(ctx context.Context, b domain.Book) error {
	model := bookToModel(b)
	var published any
	if model.PublishedDate != nil {
		published = *model.PublishedDate
	}
	res := s.db.WithContext(ctx).Model(&BookModel{}).Where("id = ?", b.ID).Updates(map[string]any{
		"title":          model.Title,
		"author":         model.Author,
		"isbn":           model.ISBN,
		"published_date": published,
		"genre":          model.Genre,
		"updated_at":     model.UpdatedAt,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).Preload("AddedBy").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns all books ordered by created_at.
func (s *GormStore) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return s.listBooks(ctx, "")
}

// FindBooks uses ILIKE for substring matches; LIKE wildcards in the term are escaped.
func (s *GormStore) FindBooks(ctx context.Context, q BookQuery) ([]domain.Book, error) {
	if len(q.Fields) == 0 {
		return s.listBooks(ctx, "")
	}
	clauses := make([]string, 0, len(q.Fields))
	args := make([]any, 0, len(q.Fields))
	pattern := "%" + escapeLike(q.Term) + "%"
	for _, f := range q.Fields {
		col, ok := bookColumns[f]
		if !ok {
			return nil, fmt.Errorf("unknown book field %q", f)
		}
		if q.Exact {
			clauses = append(clauses, col+" = ?")
			args = append(args, q.Term)
			continue
		}
		clauses = append(clauses, col+` ILIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	return s.listBooks(ctx, strings.Join(clauses, " OR "), args...)
}

var bookColumns = map[domain.BookField]string{
	domain.FieldTitle:  "title",
	domain.FieldAuthor: "author",
	domain.FieldISBN:   "isbn",
}

func (s *GormStore) listBooks(ctx context.Context, where string, args ...any) ([]domain.Book, error) {
	var models []BookModel
	tx := s.db.WithContext(ctx).Preload("AddedBy").Order("created_at ASC, id ASC")
	if where != "" {
		tx = tx.Where(where, args...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *GormStore) DeleteBook(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&BookModel{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) CreateReview(ctx context.Context, r domain.Review) error {
	model := reviewToModel(r)
	return translate(s.db.WithContext(ctx).Omit("User").Create(&model).Error)
}

func (s *GormStore) GetOwnedReview(ctx context.Context, id, userID string) (domain.Review, bool, error) {
	var model ReviewModel
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return reviewFromModel(model), true, nil
}

func (s *GormStore) ListReviewsByBook(ctx context.Context, bookID string) ([]domain.Review, error) {
	var models []ReviewModel
	err := s.db.WithContext(ctx).Preload("User").
		Where("book_id = ?", bookID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Review, 0, len(models))
	for _, m := range models {
		res = append(res, reviewFromModel(m))
	}
	return res, nil
}

func (s *GormStore) UpdateReview(ctx context.Context, r domain.Review) error {
	res := s.db.WithContext(ctx).Model(&ReviewModel{}).Where("id = ?", r.ID).Updates(map[string]any{
		"rating":     r.Rating,
		"comment":    r.Comment,
		"updated_at": r.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteOwnedReview(ctx context.Context, id, userID string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&ReviewModel{}, "id = ? AND user_id = ?", id, userID)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func userRefFromModel(m *UserModel) *domain.UserRef {
	if m == nil || m.ID == "" {
		return nil
	}
	return &domain.UserRef{ID: m.ID, Email: m.Email}
}

func bookToModel(b domain.Book) BookModel {
	m := BookModel{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		ISBN:      b.ISBN,
		Genre:     b.Genre,
		AddedByID: b.AddedByID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if b.PublishedDate != nil {
		d := datatypes.Date(*b.PublishedDate)
		m.PublishedDate = &d
	}
	return m
}

func bookFromModel(m BookModel) domain.Book {
	b := domain.Book{
		ID:        m.ID,
		Title:     m.Title,
		Author:    m.Author,
		ISBN:      m.ISBN,
		Genre:     m.Genre,
		AddedByID: m.AddedByID,
		AddedBy:   userRefFromModel(m.AddedBy),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.PublishedDate != nil {
		t := time.Time(*m.PublishedDate).UTC()
		b.PublishedDate = &t
	}
	return b
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:        r.ID,
		BookID:    r.BookID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:        m.ID,
		BookID:    m.BookID,
		UserID:    m.UserID,
		User:      userRefFromModel(m.User),
		Rating:    m.Rating,
		Comment:   m.Comment,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
