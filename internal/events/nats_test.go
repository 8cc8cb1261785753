// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("create NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatal("NATS server not ready within timeout")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATSSinkPublishesPerPartition(t *testing.T) {
	url := startTestNATS(t)

	sink, err := NewNATSSink(NATSSinkConfig{URL: url, Subject: "roadwatch.reports"}, nil)
	if err != nil {
		t.Fatalf("NewNATSSink() error = %v", err)
	}
	defer sink.Close()

	nc, err := natsgo.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync("roadwatch.reports.>")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if got := sink.Subject("orp most"); got != "roadwatch.reports.orp_most" {
		t.Errorf("Subject() = %q", got)
	}

	err = sink.Publish(context.Background(), Message{ID: "r1", Partition: "brno", Payload: []byte(`{"id":"r1"}`)})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg() error = %v", err)
	}
	if msg.Subject != "roadwatch.reports.brno" {
		t.Errorf("subject = %q, want roadwatch.reports.brno", msg.Subject)
	}
	if string(msg.Data) != `{"id":"r1"}` {
		t.Errorf("data = %s", msg.Data)
	}
	if got := msg.Header.Get("partition"); got != "brno" {
		t.Errorf("partition header = %q, want brno", got)
	}
}

func TestNATSSinkClosed(t *testing.T) {
	url := startTestNATS(t)

	sink, err := NewNATSSink(NATSSinkConfig{URL: url, Subject: "roadwatch.reports"}, nil)
	if err != nil {
		t.Fatalf("NewNATSSink() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := sink.Publish(context.Background(), Message{ID: "r1", Partition: "brno"}); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("Publish() error = %v, want ErrSinkClosed", err)
	}
}

func TestNewNATSSinkValidation(t *testing.T) {
	if _, err := NewNATSSink(NATSSinkConfig{Subject: "x"}, nil); err == nil {
		t.Error("expected error without url")
	}
	if _, err := NewNATSSink(NATSSinkConfig{URL: "nats://127.0.0.1:4222"}, nil); err == nil {
		t.Error("expected error without subject")
	}
}

func TestSinkBreakerOpens(t *testing.T) {
	cb := newSinkBreaker("test-breaker", 2, time.Minute)
	fail := errors.New("down")
	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, fail })
	}
	_, err := cb.Execute(func() (any, error) { return nil, nil })
	if !isBreakerRejection(err) {
		t.Errorf("Execute() error = %v, want breaker rejection", err)
	}
	if isBreakerRejection(fail) {
		t.Error("plain errors are not rejections")
	}
}
