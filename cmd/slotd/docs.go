package main

// General API documentation for swaggo. Run `make swagger-gen` to regenerate docs.
//
// @title           slotd API
// @version         1.0
// @description     Coordinator that keeps a fixed pool of authenticated worker processes and routes completions across them.
//
// @contact.name   slotd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
