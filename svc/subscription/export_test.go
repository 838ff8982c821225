package subscription

var EncodeSyncEvent = encodeSyncEvent
