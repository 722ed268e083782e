package mqtt

import (
	"net"
	"strconv"
	"testing"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// fakeBroker accepts MQTT 3.1.1 clients, acknowledges CONNECT and QoS 1
// PUBLISH, and forwards every publish it receives.
type fakeBroker struct {
	ln        net.Listener
	published chan *packets.PublishPacket
}

func startFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := &fakeBroker{ln: ln, published: make(chan *packets.PublishPacket, 64)}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go b.serve(conn)
		}
	}()
	return b
}

func (b *fakeBroker) port(t *testing.T) int {
	t.Helper()
	_, portStr, _ := net.SplitHostPort(b.ln.Addr().String())
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("broker port: %v", err)
	}
	return port
}

func (b *fakeBroker) serve(conn net.Conn) {
	defer conn.Close()
	for {
		cp, err := packets.ReadPacket(conn)
		if err != nil {
			return
		}
		switch p := cp.(type) {
		case *packets.ConnectPacket:
			ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
			ack.ReturnCode = packets.Accepted
			if err := ack.Write(conn); err != nil {
				return
			}
		case *packets.PublishPacket:
			b.published <- p
			if p.Qos == 1 {
				ack := packets.NewControlPacket(packets.Puback).(*packets.PubackPacket)
				ack.MessageID = p.MessageID
				if err := ack.Write(conn); err != nil {
					return
				}
			}
		case *packets.PingreqPacket:
			resp := packets.NewControlPacket(packets.Pingresp)
			if err := resp.Write(conn); err != nil {
				return
			}
		case *packets.DisconnectPacket:
			return
		}
	}
}
