package eventbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
)

// nsqdRetryDelay represents the delay that is used for retries in blocking calls.
const nsqdRetryDelay = 3 * time.Second

// A Publisher sends firmware lifecycle events to the message bus.
type Publisher interface {
	Publish(topic string, data any) error
	CreateTopic(topic string) error
	Stop()
}

// PublisherProvider connects a publisher to nsqd.
type PublisherProvider func(log *slog.Logger, tcpAddress, httpAddress string) (Publisher, error)

// NSQClient is a type to request NSQ related tasks such as creation of topics.
type NSQClient struct {
	log               *slog.Logger
	tcpAddress        string
	httpAddress       string
	publisherProvider PublisherProvider
	Publisher         Publisher
}

// NewNSQ create a new NSQClient.
func NewNSQ(log *slog.Logger, tcpAddress, httpAddress string, publisherProvider PublisherProvider) NSQClient {
	return NSQClient{
		log:               log,
		tcpAddress:        tcpAddress,
		httpAddress:       httpAddress,
		publisherProvider: publisherProvider,
	}
}

// WaitForPublisher blocks until the given provider is able to provide a non nil publisher.
func (n *NSQClient) WaitForPublisher() {
	for {
		publisher, err := n.publisherProvider(n.log, n.tcpAddress, n.httpAddress)
		if err != nil {
			n.log.Error("cannot create nsq publisher", "error", err)
			n.delay()
			continue
		}
		n.log.Info("nsq connected", "nsqd", n.tcpAddress)
		n.Publisher = publisher
		break
	}
}

// WaitForTopicsCreated blocks until all producer topics exist.
func (n *NSQClient) WaitForTopicsCreated(topics []fw.NSQTopic) {
	for {
		if err := n.createTopics(topics); err != nil {
			n.log.Error("cannot create topics", "error", err)
			n.delay()
			continue
		}
		break
	}
}

func (n *NSQClient) createTopics(topics []fw.NSQTopic) error {
	for _, topic := range topics {
		if err := n.Publisher.CreateTopic(string(topic)); err != nil {
			n.log.Error("cannot create topic", "topic", topic)
			return err
		}
	}
	return nil
}

func (n *NSQClient) delay() {
	time.Sleep(nsqdRetryDelay)
}

// PublishFirmwareEvent sends a firmware lifecycle event to the firmware
// topic. Publishing failures are logged but never propagated, the bus is a
// best-effort notification channel.
func PublishFirmwareEvent(log *slog.Logger, publisher Publisher, event *fw.FirmwareEvent) {
	if publisher == nil {
		return
	}
	err := publisher.Publish(string(fw.TopicFirmware), event)
	if err != nil {
		log.Error("cannot publish firmware event", "type", event.Type, "firmware", event.FirmwareID, "error", err)
		return
	}
	log.Debug("published firmware event", "type", event.Type, "firmware", event.FirmwareID)
}

type nsqPublisher struct {
	log         *slog.Logger
	producer    *nsq.Producer
	httpAddress string
}

// NewPublisher creates a nsqd-backed publisher.
func NewPublisher(log *slog.Logger, tcpAddress, httpAddress string) (Publisher, error) {
	config := nsq.NewConfig()
	producer, err := nsq.NewProducer(tcpAddress, config)
	if err != nil {
		return nil, fmt.Errorf("cannot create nsq producer: %w", err)
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("cannot reach nsqd at %s: %w", tcpAddress, err)
	}
	return &nsqPublisher{
		log:         log,
		producer:    producer,
		httpAddress: httpAddress,
	}, nil
}

func (p *nsqPublisher) Publish(topic string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cannot marshal event: %w", err)
	}
	return p.producer.Publish(topic, body)
}

func (p *nsqPublisher) CreateTopic(topic string) error {
	// topic creation goes through the nsqd http api, publishing a probe
	// message would pollute the topic
	resp, err := http.Post(fmt.Sprintf("http://%s/topic/create?topic=%s", p.httpAddress, topic), "", nil)
	if err != nil {
		return fmt.Errorf("cannot create topic %q: %w", topic, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cannot create topic %q: nsqd returned %s", topic, resp.Status)
	}
	return nil
}

func (p *nsqPublisher) Stop() {
	p.producer.Stop()
}
