package vision

import "time"

// nowFunc is indirected so stage tests can stub monotonic timestamps
// without sleeping.
var nowFunc = time.Now
