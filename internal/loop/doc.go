// Package loop runs the supervisor/worker feedback cycle for one pod:
// execute the instructions, evaluate the result, and retry with gap
// feedback until the supervisor passes the result or the attempt
// budget is spent. The loop owns attempt counting and terminal
// status; the worker and supervisor stay oblivious to each other.
package loop
