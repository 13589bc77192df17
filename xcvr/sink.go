// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package xcvr

import (
	"fmt"

	"github.com/garyburd/redigo/redis"
	"github.com/platinasystems/redis/publisher"
)

// DefaultChannel is the redis channel RedigoSink publishes on.
const DefaultChannel = "platform.events"

// Sink receives presence events.
type Sink interface {
	Publish(Event) error
	Close() error
}

// Key is the redis key of the slot event reports.
func (e Event) Key() string {
	return fmt.Sprintf("%s.%d.presence", e.Kind, e.Slot)
}

// RedisSink prints events to the local redis publisher socket.
type RedisSink struct {
	pub *publisher.Publisher
}

func NewRedisSink() (*RedisSink, error) {
	pub, err := publisher.New()
	if err != nil {
		return nil, err
	}
	return &RedisSink{pub}, nil
}

func (s *RedisSink) Publish(e Event) error {
	_, err := s.pub.Print(e.Key(), ": ", e.Status)
	return err
}

func (s *RedisSink) Close() error { return s.pub.Close() }

// RedigoSink publishes events on a channel of a network redis.
type RedigoSink struct {
	Conn    redis.Conn
	Channel string
}

func DialRedigoSink(addr string) (*RedigoSink, error) {
	conn, err := redis.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return &RedigoSink{Conn: conn, Channel: DefaultChannel}, nil
}

func (s *RedigoSink) Publish(e Event) error {
	_, err := s.Conn.Do("PUBLISH", s.Channel, e.Key()+": "+e.Status.String())
	return err
}

func (s *RedigoSink) Close() error { return s.Conn.Close() }

// LogSink logs events at notice level.
type LogSink struct{}

func (LogSink) Publish(e Event) error {
	log.Notice("%s", e)
	return nil
}

func (LogSink) Close() error { return nil }

// Sinks fans events out to each member, returning the first error.
type Sinks []Sink

func (l Sinks) Publish(e Event) (err error) {
	for _, s := range l {
		if perr := s.Publish(e); perr != nil && err == nil {
			err = perr
		}
	}
	return
}

func (l Sinks) Close() (err error) {
	for _, s := range l {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return
}
