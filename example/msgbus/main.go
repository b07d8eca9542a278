// Command msgbus demonstrates MX's typed-message dispatch and the
// synchronous Await primitive over a framed TCP connection: run one
// instance with -mode=server and another with -mode=client.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/vektra-labs/cxmx"
)

const (
	msgPing uint32 = 1
	msgPong uint32 = 2
)

func main() {
	mode := flag.String("mode", "server", "server or client")
	host := flag.String("host", "127.0.0.1", "address")
	port := flag.Int("port", 9100, "port")
	flag.Parse()

	switch *mode {
	case "server":
		runServer(*host, uint16(*port))
	case "client":
		runClient(*host, uint16(*port))
	default:
		log.Fatalf("unknown -mode %q", *mode)
	}
}

func runServer(host string, port uint16) {
	cx, err := cxmx.NewReactor()
	if err != nil {
		log.Fatalf("reactor: %v", err)
	}
	mx := cxmx.NewMX(cx, 1<<20)

	lfd, err := mx.ListenStream(host, port)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	bindHost, bindPort, err := mx.LocalAddr(lfd)
	if err != nil {
		log.Fatalf("local addr: %v", err)
	}
	log.Printf("msgbus server listening on %s:%d", bindHost, bindPort)

	mx.Subscribe(msgPing, func(mx *cxmx.MX, fd int, msg cxmx.Frame) {
		name := cxmx.NewUnpacker(msg.Payload).String()
		log.Printf("ping from fd %d: %q", fd, name)
		reply := cxmx.NewPacker().String("pong for " + name).Bytes()
		if err := mx.SendMessage(fd, msgPong, msg.Version, reply); err != nil {
			log.Printf("send pong: %v", err)
		}
	})

	if err := mx.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

func runClient(host string, port uint16) {
	cx, err := cxmx.NewReactor()
	if err != nil {
		log.Fatalf("reactor: %v", err)
	}
	mx := cxmx.NewMX(cx, 1<<20)

	fd, err := mx.ConnectStream(host, port)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	payload := cxmx.NewPacker().String("cxmx").Bytes()
	if err := mx.SendMessage(fd, msgPing, 1, payload); err != nil {
		log.Fatalf("send ping: %v", err)
	}

	deadline := float64(time.Now().Add(5*time.Second).UnixNano()) / 1e9
	res, err := mx.Await(fd, msgPong, deadline)
	if err != nil {
		log.Fatalf("await: %v", err)
	}
	if res.TimedOut {
		log.Fatalf("timed out waiting for pong")
	}
	reply := cxmx.NewUnpacker(res.Payload).String()
	log.Printf("received: %q (version %d)", reply, res.Version)
}
