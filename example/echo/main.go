// Command echo is a bare-CX echo server: it registers a listener and
// an on-socket hook and drives the whole thing from one reactor loop.
package main

import (
	"flag"
	"log"

	"github.com/vektra-labs/cxmx"
)

func main() {
	host := flag.String("host", "127.0.0.1", "bind address")
	port := flag.Int("port", 9000, "bind port")
	flag.Parse()

	r, err := cxmx.NewReactor()
	if err != nil {
		log.Fatalf("reactor: %v", err)
	}

	lfd, err := r.ListenStream(*host, uint16(*port))
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	bindHost, bindPort, err := r.LocalAddr(lfd)
	if err != nil {
		log.Fatalf("local addr: %v", err)
	}
	log.Printf("echo listening on %s:%d", bindHost, bindPort)

	r.SetOnConnect(func(rr *cxmx.Reactor, fd int) {
		log.Printf("accepted fd %d", fd)
	})
	r.SetOnSocket(func(rr *cxmx.Reactor, fd int, data []byte) {
		if err := rr.Send(fd, data); err != nil {
			log.Printf("echo fd %d: %v", fd, err)
		}
	})
	r.SetOnDisconnect(func(rr *cxmx.Reactor, fd int, origin cxmx.Origin) {
		log.Printf("fd %d disconnected during %s", fd, origin)
	})
	r.SetOnError(func(rr *cxmx.Reactor, fd int, origin cxmx.Origin, err error) {
		log.Printf("fd %d error during %s: %v", fd, origin, err)
	})

	if err := r.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}
