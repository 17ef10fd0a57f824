// Package hexkit provides one-shot, path-level operations on binary files
// built on the session engine: inspecting a file, dumping a range, finding a
// byte pattern and applying a batch of patches with an atomic save.
//
// Each call opens the file, does its work and releases it. Use the session
// package directly for interactive editing with undo/redo.
//
// Example:
//
//	ops := []hexkit.PatchOp{{Offset: 0x10, Data: []byte{0xEB, 0xFE}}}
//	res, err := hexkit.Patch(ctx, "firmware.bin", ops, &hexkit.OperationOptions{CreateBackup: true})
package hexkit
