package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_PublishWrapsPayload(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var env Envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		if env.Type != "contact_shared" || env.Source != "persona-assistant" {
			return errors.New("unexpected envelope header")
		}
		var payload map[string]string
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		if payload["email"] != "jane@example.com" {
			return errors.New("payload not preserved")
		}
		return nil
	})

	p := NewProducerFrom(sp, "assistant-notifications", nil)
	err := p.Publish("evt-1", "contact_shared", map[string]string{"email": "jane@example.com"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducer_PublishError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(sp, "assistant-notifications", nil)
	err := p.Publish("evt-2", "unknown_question", map[string]string{})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestProducerConfig_SendsOnce(t *testing.T) {
	config := producerConfig()
	assert.Zero(t, config.Producer.Retry.Max)
	assert.True(t, config.Producer.Return.Successes)
	require.NoError(t, config.Validate())
}

func TestProducer_NilIsSafe(t *testing.T) {
	var p *Producer
	assert.Error(t, p.Publish("k", "t", nil))
	assert.NoError(t, p.Close())
}
