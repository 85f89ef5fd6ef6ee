// Bucketlint - Bucket Fleet Spec Validator
// Load. Validate. Report.
package main

func main() {
	Execute()
}
