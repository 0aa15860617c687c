// Package route installs the policy routing used for transparent proxying:
// a rule sending packets carrying a given fwmark to a dedicated table, and a
// catch-all local route in that table so marked packets are delivered to
// the loopback interface instead of leaving the host.
//
// The equivalent iproute2 commands are:
//
//	ip rule add fwmark <mark> table <table>
//	ip route add local 0.0.0.0/0 dev lo table <table>
package route
