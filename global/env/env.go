package env

import (
	"fmt"
	"net"
	"os"
)

// LocalhostIP is the first non-loopback IPv4 address on the host, detected
// once at process start. server.Server logs it in its startup banner so an
// operator scanning logs across several hosts can tell which one a given
// server instance is bound to without cross-referencing a deploy tool.
var LocalhostIP string

func init() {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				LocalhostIP = ipnet.IP.String()
			}
		}
	}
}
