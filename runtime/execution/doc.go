// Package execution implements the kernel running processes of an office.
//
// A process starts with one thread running the invoked function. Each job of
// a thread (pre duties, the function, post duties) is dispatched on the team
// the office assigns it to; a job waiting for a managed object is suspended
// and the team is free to run other jobs. A failing job is escalated to the
// closest matching handler: function, enclosing flows, thread, then process.
// An unhandled escalation terminates the process: active governance is
// disregarded and every container released before the invoker is notified.
package execution
