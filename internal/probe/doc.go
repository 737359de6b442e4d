// Package probe checks firewall reachability from client hosts to server groups.
//
// A Plan lists the client hosts checks originate from, the servers of each
// environment they must reach, and the required ports. Checks expands the plan
// into one Check per (client, environment, server, port) and Run executes them
// with a Prober under a bounded worker pool.
//
// # Probers
//
//   - LocalProber dials from the machine running fwcheck
//   - SSHProber logs into each client (optionally through a bastion) and runs
//     bash /dev/tcp and /dev/udp redirections there
//   - NmapProber scans from the runner with nmap connect or UDP scans
//
// # UDP
//
// A UDP probe succeeding only means the datagram left the client without a
// local error. Such results have status "sent" and count as passed, but they
// never confirm that the server answered.
package probe
