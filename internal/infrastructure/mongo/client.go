package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

const (
	usersCollection = "users"
	codesCollection = "verification_codes"

	emailIndex    = "users_email_key"
	usernameIndex = "users_username_key"
)

// Client owns the driver connection and the database both stores use.
type Client struct {
	client *gomongo.Client
	db     *gomongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cl, err := gomongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	c := &Client{client: cl, db: cl.Database(database)}
	if err := c.Ping(ctx); err != nil {
		_ = cl.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

// FromDatabase wraps an existing handle (tests pass the mtest database).
func FromDatabase(db *gomongo.Database) *Client {
	return &Client{client: db.Client(), db: db}
}

func (c *Client) Database() *gomongo.Database { return c.db }

func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique user indexes and the code TTL index.
// Index names are stable because duplicate-key errors are mapped by name.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	_, err := c.db.Collection(usersCollection).Indexes().CreateMany(ctx, []gomongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(emailIndex)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(usernameIndex)},
	})
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}

	_, err = c.db.Collection(codesCollection).Indexes().CreateMany(ctx, []gomongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "code", Value: 1}}, Options: options.Index().SetUnique(true).SetName("codes_email_code_key")},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0).SetName("codes_expires_at_ttl")},
	})
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
