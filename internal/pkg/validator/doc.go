// Package validator validates request structs.
//
// Business code depends on the Validator interface. V10Validator implements it
// with go-playground/validator v10, English messages and the custom rules
// "password" and "username".
package validator
