/*
Package workflow implements the share-and-copy workflow.

# Workflows

A workflow is started for a single validated share request: a declared
media type and the URI of the shared content (the source). It then waits
for the user to select a destination, copies the source over the
destination and, after the completion has been displayed for a short
delay, finishes. Finishing is signalled by closing the channel returned
from Finished; the owner of the workflow is expected to dismiss it then.

# State

All state lives in a single Snapshot value. The only way to change it is
Update, a pure function of a snapshot and an Event:

	Idle --Picked--> Selected --CopyStarted--> InProgress --CopyCompleted--> Completed --DelayElapsed--> Finished
	Idle --Dismissed--> Cancelled
	InProgress --CopyFailed--> Failed

Cancelled and Failed hold no destination and accept Picked (and
Dismissed) again: the user may retry the destination selection, but the
workflow never returns to Idle. While a destination is held (Selected,
InProgress, Completed, Finished) selecting another one fails with
ErrDestinationHeld. The retry control of a user interface should be
enabled exactly when Snapshot.RetryEnabled is true.

# Copy task

Each successful selection starts one copy task. The task is owned by
the workflow: Close cancels it and waits for it to return. There is no
retry, no resumption and no progress beyond the InProgress state. A
failure to open the source or the destination surfaces as a Failed
snapshot whose Err wraps content.ErrResourceUnavailable.
*/
package workflow
