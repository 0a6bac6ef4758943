// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package schedule reads fee schedule exports.
//
// Two formats are recognized: the XML export (<MBS_XML> with one <Data>
// element per item) and the JSON export ({"MBS_Items": [...]}, or a bare
// array). Records are streamed so large schedules never sit in memory at once.
//
// A structural problem with the file returns ErrMalformed from Open or Next.
// A record that is readable but invalid is reported by ToItem; callers skip it
// and carry on.
package schedule
