// Package relay forwards typed signaling events between the connections of
// a support session.
//
// The relay is payload-agnostic: for each event kind it copies a fixed set
// of top-level fields from the sender's envelope to every other connection
// in the same room. SDP, ICE candidates, screenshots and chat bodies are
// never inspected. Supporting a new kind is a single entry in the event
// table.
package relay
