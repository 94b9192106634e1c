package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookshelf/pkg/domain"
)

const (
	usersCollection   = "users"
	booksCollection   = "books"
	reviewsCollection = "reviews"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

type bookDoc struct {
	ID            string     `bson:"_id"`
	Title         string     `bson:"title"`
	Author        string     `bson:"author"`
	ISBN          string     `bson:"isbn"`
	PublishedDate *time.Time `bson:"publishedDate,omitempty"`
	Genre         string     `bson:"genre,omitempty"`
	AddedBy       string     `bson:"addedBy"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
}

type reviewDoc struct {
	ID        string    `bson:"_id"`
	Book      string    `bson:"book"`
	User      string    `bson:"user"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore implements Store on a MongoDB database. Ids are application
// generated strings stored in _id.
type MongoStore struct {
	client  *mongo.Client
	users   *mongo.Collection
	books   *mongo.Collection
	reviews *mongo.Collection
}

// NewMongoStore connects, pings and ensures indexes.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	s := &MongoStore{
		client:  client,
		users:   db.Collection(usersCollection),
		books:   db.Collection(booksCollection),
		reviews: db.Collection(reviewsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	specs := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.books, mongo.IndexModel{Keys: bson.D{{Key: "isbn", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.books, mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: 1}}}},
		{s.reviews, mongo.IndexModel{Keys: bson.D{{Key: "book", Value: 1}, {Key: "createdAt", Value: 1}}}},
	}
	for _, spec := range specs {
		if _, err := spec.coll.Indexes().CreateOne(ctx, spec.model); err != nil {
			return fmt.Errorf("create index on %s: %w", spec.coll.Name(), err)
		}
	}
	return nil
}

func mongoWriteErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.users.InsertOne(ctx, userToDoc(u))
	return mongoWriteErr(err)
}

func (s *MongoStore) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, userToDoc(u))
	if err != nil {
		return mongoWriteErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (domain.User, bool, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromDoc(doc), true, nil
}

func (s *MongoStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var docs []userDoc
	if err := s.findAll(ctx, s.users, bson.M{}, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, userFromDoc(d))
	}
	return out, nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	return deleteOne(ctx, s.users, bson.M{"_id": id})
}

func (s *MongoStore) CreateBook(ctx context.Context, b domain.Book) error {
	_, err := s.books.InsertOne(ctx, bookToDoc(b))
	return mongoWriteErr(err)
}

func (s *MongoStore) UpdateBook(ctx context.Context, b domain.Book) error {
	res, err := s.books.ReplaceOne(ctx, bson.M{"_id": b.ID}, bookToDoc(b))
	if err != nil {
		return mongoWriteErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var doc bookDoc
	if err := s.books.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	books, err := s.populateBooks(ctx, []bookDoc{doc})
	if err != nil {
		return domain.Book{}, false, err
	}
	return books[0], true, nil
}

func (s *MongoStore) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return s.FindBooks(ctx, BookQuery{})
}

// FindBooks matches substrings with a case-insensitive $regex built from the
// quoted term, so the term is never interpreted as a pattern.
func (s *MongoStore) FindBooks(ctx context.Context, q BookQuery) ([]domain.Book, error) {
	filter := bson.M{}
	if len(q.Fields) > 0 {
		or := make(bson.A, 0, len(q.Fields))
		for _, f := range q.Fields {
			if _, ok := bookColumns[f]; !ok {
				return nil, fmt.Errorf("unknown book field %q", f)
			}
			if q.Exact {
				or = append(or, bson.M{string(f): q.Term})
				continue
			}
			or = append(or, bson.M{string(f): primitive.Regex{Pattern: regexp.QuoteMeta(q.Term), Options: "i"}})
		}
		filter["$or"] = or
	}
	var docs []bookDoc
	if err := s.findAll(ctx, s.books, filter, &docs); err != nil {
		return nil, err
	}
	return s.populateBooks(ctx, docs)
}

func (s *MongoStore) DeleteBook(ctx context.Context, id string) (bool, error) {
	return deleteOne(ctx, s.books, bson.M{"_id": id})
}

func (s *MongoStore) CreateReview(ctx context.Context, r domain.Review) error {
	_, err := s.reviews.InsertOne(ctx, reviewToDoc(r))
	return mongoWriteErr(err)
}

func (s *MongoStore) GetOwnedReview(ctx context.Context, id, userID string) (domain.Review, bool, error) {
	var doc reviewDoc
	if err := s.reviews.FindOne(ctx, bson.M{"_id": id, "user": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return reviewFromDoc(doc, nil), true, nil
}

func (s *MongoStore) ListReviewsByBook(ctx context.Context, bookID string) ([]domain.Review, error) {
	var docs []reviewDoc
	if err := s.findAll(ctx, s.reviews, bson.M{"book": bookID}, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.User)
	}
	refs, err := s.userRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Review, 0, len(docs))
	for _, d := range docs {
		out = append(out, reviewFromDoc(d, refs))
	}
	return out, nil
}

func (s *MongoStore) UpdateReview(ctx context.Context, r domain.Review) error {
	res, err := s.reviews.UpdateOne(ctx, bson.M{"_id": r.ID}, bson.M{"$set": bson.M{
		"rating":    r.Rating,
		"comment":   r.Comment,
		"updatedAt": r.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteOwnedReview(ctx context.Context, id, userID string) (bool, error) {
	return deleteOne(ctx, s.reviews, bson.M{"_id": id, "user": userID})
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) findAll(ctx context.Context, coll *mongo.Collection, filter any, out any) error {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return nil
}

// userRefs resolves user ids with a single $in query. Missing ids are absent from the map.
func (s *MongoStore) userRefs(ctx context.Context, ids []string) (map[string]*domain.UserRef, error) {
	refs := make(map[string]*domain.UserRef)
	if len(ids) == 0 {
		return refs, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": uniqueIDs(ids)}},
		options.Find().SetProjection(bson.M{"email": 1}))
	if err != nil {
		return nil, fmt.Errorf("populate users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("populate users: %w", err)
	}
	for _, d := range docs {
		refs[d.ID] = &domain.UserRef{ID: d.ID, Email: d.Email}
	}
	return refs, nil
}

func (s *MongoStore) populateBooks(ctx context.Context, docs []bookDoc) ([]domain.Book, error) {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.AddedBy)
	}
	refs, err := s.userRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Book, 0, len(docs))
	for _, d := range docs {
		out = append(out, bookFromDoc(d, refs))
	}
	return out, nil
}

func deleteOne(ctx context.Context, coll *mongo.Collection, filter bson.M) (bool, error) {
	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func userToDoc(u domain.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromDoc(d userDoc) domain.User {
	return domain.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         domain.Role(d.Role),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func bookToDoc(b domain.Book) bookDoc {
	return bookDoc{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		ISBN:          b.ISBN,
		PublishedDate: b.PublishedDate,
		Genre:         b.Genre,
		AddedBy:       b.AddedByID,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func bookFromDoc(d bookDoc, refs map[string]*domain.UserRef) domain.Book {
	b := domain.Book{
		ID:        d.ID,
		Title:     d.Title,
		Author:    d.Author,
		ISBN:      d.ISBN,
		Genre:     d.Genre,
		AddedByID: d.AddedBy,
		AddedBy:   refs[d.AddedBy],
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.PublishedDate != nil {
		t := d.PublishedDate.UTC()
		b.PublishedDate = &t
	}
	return b
}

func reviewToDoc(r domain.Review) reviewDoc {
	return reviewDoc{
		ID:        r.ID,
		Book:      r.BookID,
		User:      r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func reviewFromDoc(d reviewDoc, refs map[string]*domain.UserRef) domain.Review {
	return domain.Review{
		ID:        d.ID,
		BookID:    d.Book,
		UserID:    d.User,
		User:      refs[d.User],
		Rating:    d.Rating,
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}
