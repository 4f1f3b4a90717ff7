// Package relay streams decoded packets to websocket clients.
//
// A relay sits between one packet source (serial port or capture file) and
// any number of browser or script clients on the network. Endpoints:
//
//	/ws       websocket packet stream
//	/metrics  Prometheus metrics
//	/healthz  JSON status
//
// # Websocket Messages
//
// Every message is a JSON object with a "type" field. On connect the client
// receives a hello:
//
//	{"type":"hello","client_id":"6f1c...","source":"/dev/ttyUSB0","version":"v0.3.0","writable":true}
//
// Each received packet follows as a packet message with the header fields,
// the encoded packet in hex and the decoded entries. Struct entries carry
// their members in "entries" and packet entries the nested packet in
// "packet".
//
// When the source is writable a client may send a packet:
//
//	{"type":"send","hex":"0a41110029..."}
//
// The relay frames it, writes it to the source and answers with
// {"type":"ack"} or {"type":"error","error":"..."}.
//
// # Slow Clients
//
// Each client has a bounded send queue. Messages for a client whose queue
// is full are dropped and counted in wccp_relay_messages_dropped_total;
// the source is never blocked by a client.
package relay
