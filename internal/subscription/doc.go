// Package subscription implements prepaid, time-boxed device leases and
// treasury administration (registration rewards, reward pool funding).
//
// A subscription pays the device owner up front; nothing is escrowed.
// Expiry is lazy: IsActive stops granting access at the end time whether
// or not anyone has called Expire, and Expire merely makes the expired
// state durable.
package subscription
