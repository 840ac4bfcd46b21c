// Package bus provides in-process publish/subscribe fan-out for pileup
// state changes.
//
// The coordinator publishes a typed Event after every committed mutation;
// the bus delivers it to every live Subscription in publish order. A slow
// subscriber never blocks Publish: each subscription has a bounded pending
// queue, and on overflow the bus drops the subscriber's oldest pending
// keepalive first, disconnecting the subscriber only when nothing
// droppable remains.
//
// Ordering is guaranteed per subscriber (each sees events in the order
// they were published); no ordering is promised across subscribers.
package bus
