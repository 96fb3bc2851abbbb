package clientdata

import "time"

// TTLPrice bounds how long a cached quote backs accept/decline decisions;
// market prices move constantly.
const TTLPrice = time.Hour
