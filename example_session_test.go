// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"context"
	"fmt"

	"github.com/bassosimone/runtimex"
)

// This example sets a breakpoint on an activity lifecycle method, waits
// for a thread to hit it, and runs a shell command inside the debugged
// process on the suspended thread. The debugged VM is simulated so the
// example runs without a device.
func ExampleSession_Exec() {
	location := Location{Tag: TypeTagClass, Class: 0xAA, Method: 0xBB, Index: 0}
	fake := newFakeVM()
	fake.classes["Landroid/app/Activity;"] = 0xAA
	fake.methods[0xAA] = []MethodInfo{
		{ID: 0xBB, Name: "onCreate", Signature: "(Landroid/os/Bundle;)V"},
	}
	fake.classes[runtimeClassSignature] = 0xA1
	fake.classes[processClassSignature] = 0xA2
	fake.methods[0xA1] = []MethodInfo{
		{ID: 0xB1, Name: "getRuntime", Signature: "()Ljava/lang/Runtime;"},
		{ID: 0xB2, Name: "exec", Signature: "(Ljava/lang/String;)Ljava/lang/Process;"},
	}
	fake.methods[0xA2] = []MethodInfo{{ID: 0xB4, Name: "waitFor", Signature: "()I"}}
	fake.invokeResults = []TaggedValue{
		NewObjectValue(TagObject, 0xE1),
		NewObjectValue(TagObject, 0xE2),
		NewIntValue(0),
	}
	fake.onBreakpointSet = func(requestID uint32) {
		fake.pushEvents(SuspendPolicyAll, encodeBreakpointRecord(requestID, 0xCAFE, location))
	}

	ctx := context.Background()
	session := runtimex.PanicOnError1(NewSession(
		ctx, NewConfig(), fake.Conn(), 4242, "com.example.app", DefaultSLogger()))
	defer session.Stop(ctx)

	hit := runtimex.PanicOnError1(session.SetBreakpointAndWait(
		ctx, "Landroid/app/Activity;", "onCreate"))
	fmt.Printf("hit on thread 0x%x\n", uint64(hit.Thread))

	exitCode := runtimex.PanicOnError1(session.Exec(ctx, hit.Thread, "id"))
	fmt.Printf("exit code %d\n", exitCode)

	// Output:
	// hit on thread 0xcafe
	// exit code 0
}
