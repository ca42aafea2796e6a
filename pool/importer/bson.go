package importer

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxDocumentSize is MongoDB's BSON document limit.
const maxDocumentSize = 16 * 1024 * 1024

// legacyAccount is a pool document as the old store kept it. Older dumps
// name the field account, newer ones token.
type legacyAccount struct {
	Account string `bson:"account"`
	Token   string `bson:"token"`
}

func (d legacyAccount) value() string {
	if d.Account != "" {
		return d.Account
	}
	return d.Token
}

// ReadBSONDump decodes a mongodump stream: a sequence of documents, each
// prefixed by its little-endian int32 length.
func ReadBSONDump(r io.Reader) ([]string, error) {
	reader := bufio.NewReader(r)
	var tokens []string

	for n := 1; ; n++ {
		lengthBytes := make([]byte, 4)
		_, err := io.ReadFull(reader, lengthBytes)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: failed to read length: %w", n, err)
		}

		length := int32(binary.LittleEndian.Uint32(lengthBytes))
		if length <= 4 || length > maxDocumentSize {
			return nil, fmt.Errorf("document %d: invalid length %d", n, length)
		}

		doc := make([]byte, length)
		copy(doc, lengthBytes)
		if _, err := io.ReadFull(reader, doc[4:]); err != nil {
			return nil, fmt.Errorf("document %d: failed to read body: %w", n, err)
		}

		var acc legacyAccount
		if err := bson.Unmarshal(doc, &acc); err != nil {
			return nil, fmt.Errorf("document %d: failed to decode: %w", n, err)
		}
		if v := acc.value(); v != "" {
			tokens = append(tokens, v)
		}
	}
	return tokens, nil
}

func ReadBSONFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open BSON dump: %w", err)
	}
	defer file.Close()

	return ReadBSONDump(file)
}

// MongoSource reads tokens from a live collection.
type MongoSource struct {
	coll *mongo.Collection
}

func NewMongoSource(coll *mongo.Collection) *MongoSource {
	return &MongoSource{coll: coll}
}

// ConnectMongo opens a client for uri. The returned function disconnects it.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*MongoSource, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return NewMongoSource(client.Database(database).Collection(collection)), client.Disconnect, nil
}

// Tokens returns every token in natural order.
func (s *MongoSource) Tokens(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 0, "account": 1, "token": 1})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer cur.Close(ctx)

	var tokens []string
	for cur.Next(ctx) {
		var acc legacyAccount
		if err := cur.Decode(&acc); err != nil {
			return nil, fmt.Errorf("failed to decode account: %w", err)
		}
		if v := acc.value(); v != "" {
			tokens = append(tokens, v)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}
