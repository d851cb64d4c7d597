package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipebook/ingredientservice/internal/domain"
)

// ingredientDoc mirrors the documents of the recipe application's
// ingredients collection, including the older Spanish field names.
type ingredientDoc struct {
	ID              string            `bson:"id"`
	Names           map[string]string `bson:"names,omitempty"`
	Name            string            `bson:"name,omitempty"`
	Category        string            `bson:"category,omitempty"`
	Categoria       string            `bson:"categoria,omitempty"`
	AllowedUnits    []string          `bson:"allowedUnits,omitempty"`
	AllowedMeasures bson.RawValue     `bson:"allowedMeasures,omitempty"`
	StandardUnit    string            `bson:"standardUnit,omitempty"`
}

// MongoSource reads the full ingredients collection once, in natural order.
type MongoSource struct {
	collection *mongo.Collection
}

func NewMongoSource(client *mongo.Client, dbName, collectionName string) *MongoSource {
	return &MongoSource{collection: client.Database(dbName).Collection(collectionName)}
}

func ConnectMongo(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (m *MongoSource) Name() string {
	if m == nil || m.collection == nil {
		return "mongo"
	}
	return normalizeSourceName("mongo", m.collection.Database().Name()+"."+m.collection.Name())
}

func (m *MongoSource) Load(ctx context.Context) ([]RawRecord, error) {
	if m == nil || m.collection == nil {
		return nil, domain.ErrCatalogNotLoaded
	}
	cursor, err := m.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find ingredients: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]RawRecord, 0, 256)
	index := 0
	for cursor.Next(ctx) {
		var doc ingredientDoc
		if err := cursor.Decode(&doc); err != nil {
			out = append(out, RawRecord{Index: index, DecodeErr: fmt.Errorf("decode document: %w", err)})
		} else {
			out = append(out, RawRecord{Index: index, Ingredient: fromDoc(doc)})
		}
		index++
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingredients: %w", err)
	}
	return out, nil
}

func fromDoc(doc ingredientDoc) domain.Ingredient {
	out := domain.Ingredient{
		ID:           strings.TrimSpace(doc.ID),
		Names:        doc.Names,
		Category:     doc.Category,
		AllowedUnits: append([]string(nil), doc.AllowedUnits...),
	}
	if out.Category == "" {
		out.Category = doc.Categoria
	}
	if len(out.Names) == 0 && strings.TrimSpace(doc.Name) != "" {
		out.Names = map[string]string{domain.DefaultLang: doc.Name}
	}
	if len(out.AllowedUnits) == 0 {
		out.AllowedUnits = decodeMeasures(doc.AllowedMeasures)
	}
	if len(out.AllowedUnits) == 0 && strings.TrimSpace(doc.StandardUnit) != "" {
		out.AllowedUnits = []string{doc.StandardUnit}
	}
	return out
}

// decodeMeasures accepts an array of strings or of {name: ...} documents.
func decodeMeasures(value bson.RawValue) []string {
	array, ok := value.ArrayOK()
	if !ok {
		return nil
	}
	values, err := array.Values()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, item := range values {
		if s, ok := item.StringValueOK(); ok {
			out = append(out, s)
			continue
		}
		if doc, ok := item.DocumentOK(); ok {
			if name, ok := doc.Lookup("name").StringValueOK(); ok {
				out = append(out, name)
			}
		}
	}
	return out
}
