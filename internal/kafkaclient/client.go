// Package kafkaclient adapts a franz-go/kadm admin client to the minimal
// contract the scraper needs: metadata and per-partition high watermarks.
package kafkaclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

// PartitionMeta describes one partition as seen in a metadata response.
type PartitionMeta struct {
	ID       int32
	Leader   int32
	Replicas []int32
	ISR      []int32
}

// TopicMeta describes one topic's partitions.
type TopicMeta struct {
	Name       string
	Partitions map[int32]PartitionMeta
}

// ClusterMeta is the subset of a metadata response the scraper consumes.
type ClusterMeta struct {
	Topics map[string]TopicMeta
}

// Client is the broker-protocol contract the scrape and probe loops use.
// It is implemented by *KadmClient against a real cluster, and can be
// swapped for a fake in tests.
type Client interface {
	FetchMetadata(ctx context.Context, timeout time.Duration) (ClusterMeta, error)
	FetchWatermark(ctx context.Context, topic string, partition int32, timeout time.Duration) (high int64, err error)
}

// KadmClient is the production Client, backed by kadm.Client.
type KadmClient struct {
	admin *kadm.Client
	kgo   *kgo.Client
}

// Options configure construction of a KadmClient.
type Options struct {
	Brokers      []string
	KafkaOptions map[string]string
}

// New constructs a KadmClient, translating recognized -X options into kgo
// client options. Unrecognized keys are returned in the second value so the
// caller can warn about them instead of silently dropping configuration.
func New(opts Options) (*KadmClient, []string, error) {
	kopts := []kgo.Opt{kgo.SeedBrokers(opts.Brokers...)}
	var unrecognized []string

	// sasl.mechanism/sasl.username/sasl.password name one credential
	// together, unlike the rest of the -X options, so they're assembled
	// before the generic per-key pass below (grounded on the SASL
	// construction used against this same client library elsewhere).
	if opt, ok := translateSASL(opts.KafkaOptions); ok {
		kopts = append(kopts, opt)
	}

	for k, v := range opts.KafkaOptions {
		if isSASLKey(k) {
			continue
		}
		opt, ok := translateOption(k, v)
		if !ok {
			unrecognized = append(unrecognized, k)
			continue
		}
		kopts = append(kopts, opt)
	}
	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, unrecognized, fmt.Errorf("construct kafka client: %w", err)
	}
	return &KadmClient{admin: kadm.NewClient(cl), kgo: cl}, unrecognized, nil
}

func isSASLKey(key string) bool {
	switch key {
	case "sasl.mechanism", "sasl.username", "sasl.password":
		return true
	default:
		return false
	}
}

// translateSASL builds a kgo.SASL option from sasl.mechanism/sasl.username/
// sasl.password, if a username was given. Mechanism defaults to
// SCRAM-SHA-256 when unset, matching the plain/scram mechanisms franz-go
// ships.
func translateSASL(opts map[string]string) (kgo.Opt, bool) {
	user := opts["sasl.username"]
	if user == "" {
		return nil, false
	}
	pass := opts["sasl.password"]

	switch strings.ToUpper(opts["sasl.mechanism"]) {
	case "PLAIN":
		return kgo.SASL(plain.Auth{User: user, Pass: pass}.AsMechanism()), true
	case "SCRAM-SHA-512":
		return kgo.SASL(scram.Auth{User: user, Pass: pass}.AsSha512Mechanism()), true
	case "SCRAM-SHA-256", "":
		return kgo.SASL(scram.Auth{User: user, Pass: pass}.AsSha256Mechanism()), true
	default:
		return nil, false
	}
}

// translateOption maps a handful of rdkafka-style config keys, inherited
// from the original -X passthrough, onto their kgo equivalents.
func translateOption(key, val string) (kgo.Opt, bool) {
	switch key {
	case "security.protocol":
		// TLS is opted into elsewhere; plaintext/SASL_PLAINTEXT need no option.
		if val == "SSL" || val == "SASL_SSL" {
			return kgo.DialTLSConfig(nil), true
		}
		return nil, false
	case "client.id":
		return kgo.ClientID(val), true
	default:
		return nil, false
	}
}

// Close releases the underlying kafka connections.
func (c *KadmClient) Close() {
	c.kgo.Close()
}

// FetchMetadata implements Client.
func (c *KadmClient) FetchMetadata(ctx context.Context, timeout time.Duration) (ClusterMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	m, err := c.admin.Metadata(ctx)
	if err != nil {
		return ClusterMeta{}, fmt.Errorf("fetch metadata: %w", err)
	}
	out := ClusterMeta{Topics: make(map[string]TopicMeta, len(m.Topics))}
	for name, td := range m.Topics {
		if td.Err != nil {
			continue
		}
		tm := TopicMeta{Name: name, Partitions: make(map[int32]PartitionMeta, len(td.Partitions))}
		for pid, pd := range td.Partitions {
			tm.Partitions[pid] = PartitionMeta{
				ID:       pd.Partition,
				Leader:   pd.Leader,
				Replicas: pd.Replicas,
				ISR:      pd.ISR,
			}
		}
		out.Topics[name] = tm
	}
	return out, nil
}

// FetchWatermark implements Client. It issues a single-topic ListEndOffsets
// call and extracts the partition's high watermark.
func (c *KadmClient) FetchWatermark(ctx context.Context, topic string, partition int32, timeout time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	listed, err := c.admin.ListEndOffsets(ctx, topic)
	if err != nil {
		return 0, fmt.Errorf("list end offsets for %s: %w", topic, err)
	}
	parts, ok := listed[topic]
	if !ok {
		return 0, fmt.Errorf("topic %s missing from end-offset response", topic)
	}
	off, ok := parts[partition]
	if !ok {
		return 0, fmt.Errorf("partition %s/%d missing from end-offset response", topic, partition)
	}
	if off.Err != nil {
		return 0, fmt.Errorf("partition %s/%d: %w", topic, partition, off.Err)
	}
	return off.Offset, nil
}
