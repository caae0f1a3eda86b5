package notify

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"khazna-backend/internal/domain"
)

func TestPubSubPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	admin, err := pubsub.NewClient(ctx, "khazna-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, "notifications")
	require.NoError(t, err)

	pub := NewPubSubPublisher(PubSubConfig{ProjectID: "khazna-test", Topic: "notifications"}, option.WithGRPCConn(conn))
	defer pub.Close()

	err = pub.Publish(ctx, domain.OutboxMessage{
		ID:          11,
		RecipientID: 6,
		Title:       "عملية تموين",
		Description: "تم تموين السيارة CAR-100",
		Category:    domain.CategoryFuel,
		Attributes:  map[string]string{"operation_id": "3"},
	})
	require.NoError(t, err)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "6", msgs[0].Attributes["recipient_id"])
	assert.Equal(t, "fuel", msgs[0].Attributes["category"])

	var body pubsubMessage
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, int64(11), body.ID)
	assert.Equal(t, int32(6), body.RecipientID)
	assert.Equal(t, "عملية تموين", body.Title)
	assert.Equal(t, "3", body.Attributes["operation_id"])
}

func TestPubSubPublisher_RequiresTopic(t *testing.T) {
	pub := NewPubSubPublisher(PubSubConfig{ProjectID: "khazna-test"})
	err := pub.Publish(context.Background(), domain.OutboxMessage{ID: 1})
	assert.Error(t, err)
	assert.NoError(t, pub.Close())
}
